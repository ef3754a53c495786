package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/inference"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

// EncoderService projects text and images into the shared embedding space and
// produces captions for image queries. All vectors it returns are L2
// normalized, so cosine similarity downstream reduces to a dot product.
type EncoderService interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeImage(ctx context.Context, imageBytes []byte) ([]float32, error)
	Caption(ctx context.Context, imageBytes []byte) (string, error)
	ModelName() string
}

type encoderService struct {
	log          *logger.Logger
	client       inference.Client
	cache        cache.Cache
	embeddingTTL time.Duration
}

func NewEncoderService(log *logger.Logger, client inference.Client, c cache.Cache) (EncoderService, error) {
	if client == nil {
		return nil, fmt.Errorf("inference client required")
	}
	svcLog := log.With("service", "EncoderService")
	ttlSeconds := utils.GetEnvAsInt("CACHE_EMBEDDING_TTL", int((24 * time.Hour).Seconds()), svcLog)
	return &encoderService{
		log:          svcLog,
		client:       client,
		cache:        c,
		embeddingTTL: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

func (s *encoderService) ModelName() string { return s.client.EmbedModel() }

func (s *encoderService) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidQuery)
	}

	key := cache.EmbeddingKey(types.EmbeddingTypeText, []byte(cache.NormalizeQueryText(text)))
	if vec, ok := s.cachedVector(ctx, key); ok {
		return vec, nil
	}

	vectors, err := s.client.EmbedText(ctx, []string{text})
	if err != nil {
		return nil, mapInferenceError(err)
	}
	vec, err := normalizeVector(vectors[0])
	if err != nil {
		return nil, err
	}

	s.storeVector(ctx, key, vec)
	return vec, nil
}

func (s *encoderService) EncodeImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	if err := validateImage(imageBytes); err != nil {
		return nil, err
	}

	key := cache.EmbeddingKey(types.EmbeddingTypeImage, imageBytes)
	if vec, ok := s.cachedVector(ctx, key); ok {
		return vec, nil
	}

	raw, err := s.client.EmbedImage(ctx, imageBytes)
	if err != nil {
		return nil, mapInferenceError(err)
	}
	vec, err := normalizeVector(raw)
	if err != nil {
		return nil, err
	}

	s.storeVector(ctx, key, vec)
	return vec, nil
}

func (s *encoderService) Caption(ctx context.Context, imageBytes []byte) (string, error) {
	if err := validateImage(imageBytes); err != nil {
		return "", err
	}

	key := cache.EmbeddingKey(types.EmbeddingTypeCaption, imageBytes)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			return string(raw), nil
		}
	}

	caption, err := s.client.Caption(ctx, imageBytes)
	if err != nil {
		return "", mapInferenceError(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(caption), s.embeddingTTL); err != nil {
			s.log.Warn("caption cache write failed", "error", err)
		}
	}
	return caption, nil
}

// validateImage rejects bytes that no registered decoder understands before
// any network round trip is made. webp registers itself via the blank import.
func validateImage(imageBytes []byte) error {
	if len(imageBytes) == 0 {
		return fmt.Errorf("%w: empty image payload", ErrDecode)
	}
	if _, _, err := image.Decode(bytes.NewReader(imageBytes)); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// normalizeVector scales v to unit length. A zero or empty vector means the
// model produced garbage and must never reach the index.
func normalizeVector(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty embedding vector", ErrModelUnavailable)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, fmt.Errorf("%w: zero embedding vector", ErrModelUnavailable)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

func (s *encoderService) cachedVector(ctx context.Context, key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		s.log.Warn("discarding undecodable cached embedding", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

func (s *encoderService) storeVector(ctx context.Context, key string, vec []float32) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.embeddingTTL); err != nil {
		s.log.Warn("embedding cache write failed", "error", err)
	}
}

// mapInferenceError folds sidecar operation errors into the domain taxonomy.
func mapInferenceError(err error) error {
	if err == nil {
		return nil
	}
	var opErr *inference.OperationError
	if errors.As(err, &opErr) {
		switch opErr.Code {
		case inference.OperationErrorModelUnavailable, inference.OperationErrorTimeout, inference.OperationErrorTransportFailed, inference.OperationErrorBadResponse:
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		case inference.OperationErrorBadInput:
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return err
}
