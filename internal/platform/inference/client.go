package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
)

// Client talks to the model-serving sidecar that hosts the joint text/image
// embedding model, the image captioner, and the cross-encoder. All vectors
// come back in the shared embedding space, so a text query vector is directly
// comparable (cosine) against image-derived points.
type Client interface {
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error)
	Caption(ctx context.Context, imageBytes []byte) (string, error)
	// Score returns one cross-encoder relevance score per document for the
	// given query, in document order.
	Score(ctx context.Context, query string, documents []string) ([]float64, error)

	EmbedModel() string
}

type client struct {
	log        *logger.Logger
	baseURL    string
	embedModel string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("INFERENCE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing INFERENCE_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	embedModel := strings.TrimSpace(os.Getenv("INFERENCE_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "clip-ViT-L-14"
	}

	timeoutSec := 60
	if v := strings.TrimSpace(os.Getenv("INFERENCE_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "InferenceClient"),
		baseURL:    baseURL,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) EmbedModel() string { return c.embedModel }

type embedTextRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedTextResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

func (c *client) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embed_text"
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i := range texts {
		s := strings.TrimSpace(texts[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embedTextResponse
	if err := c.doJSON(ctx, op, "/v1/embed/text", embedTextRequest{Model: c.embedModel, Texts: clean}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(clean) {
		return nil, opErr(op, OperationErrorBadResponse, fmt.Sprintf("vector count mismatch: requested=%d returned=%d", len(clean), len(resp.Vectors)), nil)
	}
	for i, v := range resp.Vectors {
		if len(v) == 0 {
			return nil, opErr(op, OperationErrorBadResponse, fmt.Sprintf("empty vector at index %d", i), nil)
		}
	}
	return resp.Vectors, nil
}

type embedImageRequest struct {
	Model    string `json:"model"`
	ImageB64 string `json:"image_b64"`
}

type embedImageResponse struct {
	Vector []float32 `json:"vector"`
}

func (c *client) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	const op = "embed_image"
	if len(imageBytes) == 0 {
		return nil, opErr(op, OperationErrorBadInput, "image bytes required", nil)
	}

	req := embedImageRequest{
		Model:    c.embedModel,
		ImageB64: base64.StdEncoding.EncodeToString(imageBytes),
	}
	var resp embedImageResponse
	if err := c.doJSON(ctx, op, "/v1/embed/image", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, opErr(op, OperationErrorBadResponse, "empty vector returned", nil)
	}
	return resp.Vector, nil
}

type captionRequest struct {
	ImageB64 string `json:"image_b64"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

func (c *client) Caption(ctx context.Context, imageBytes []byte) (string, error) {
	const op = "caption"
	if len(imageBytes) == 0 {
		return "", opErr(op, OperationErrorBadInput, "image bytes required", nil)
	}

	req := captionRequest{ImageB64: base64.StdEncoding.EncodeToString(imageBytes)}
	var resp captionResponse
	if err := c.doJSON(ctx, op, "/v1/caption", req, &resp); err != nil {
		return "", err
	}
	caption := strings.TrimSpace(resp.Caption)
	if caption == "" {
		return "", opErr(op, OperationErrorBadResponse, "empty caption returned", nil)
	}
	return caption, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

func (c *client) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	const op = "rerank"
	if strings.TrimSpace(query) == "" {
		return nil, opErr(op, OperationErrorBadInput, "query text required", nil)
	}
	if len(documents) == 0 {
		return []float64{}, nil
	}

	var resp rerankResponse
	if err := c.doJSON(ctx, op, "/v1/rerank", rerankRequest{Query: query, Documents: documents}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(documents) {
		return nil, opErr(op, OperationErrorBadResponse, fmt.Sprintf("score count mismatch: requested=%d returned=%d", len(documents), len(resp.Scores)), nil)
	}
	return resp.Scores, nil
}

func (c *client) doJSON(ctx context.Context, op, path string, in any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		// Sidecar up but model not loaded yet.
		return opErr(op, OperationErrorModelUnavailable, errorBody(raw), nil)
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return opErr(op, OperationErrorBadInput, errorBody(raw), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &OperationError{
			Code:       OperationErrorCallFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("inference http status=%d body=%q", resp.StatusCode, errorBody(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode response failed", err)
	}
	return nil
}

func classifyCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "inference request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "inference request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "inference request failed", err)
}

func errorBody(raw []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && strings.TrimSpace(parsed.Error) != "" {
		return strings.TrimSpace(parsed.Error)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
