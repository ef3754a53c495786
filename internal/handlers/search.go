package handlers

import (
  "encoding/base64"
  "io"
  "net/http"
  "strconv"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/services"
)

const maxUploadBytes = 16 << 20

type SearchHandler struct {
  log       *logger.Logger
  searchSvc services.SearchService
}

func NewSearchHandler(log *logger.Logger, searchSvc services.SearchService) *SearchHandler {
  return &SearchHandler{
    log:       log.With("handler", "SearchHandler"),
    searchSvc: searchSvc,
  }
}

type searchJSONRequest struct {
  Text     string `json:"text"`
  ImageB64 string `json:"image_b64"`
  TopK     int    `json:"top_k"`
}

type searchResponse struct {
  Results []services.SearchResult `json:"results"`
  Count   int                     `json:"count"`
}

// POST /api/v1/search
// Accepts JSON ({text, image_b64, top_k}) or multipart form with fields
// text/top_k and an image file part.
func (h *SearchHandler) Search(c *gin.Context) {
  query, err := h.parseQuery(c)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  results, err := h.searchSvc.Search(c.Request.Context(), query)
  if err != nil {
    respondDomainError(c, err)
    return
  }
  RespondOK(c, searchResponse{Results: results, Count: len(results)})
}

func (h *SearchHandler) parseQuery(c *gin.Context) (services.SearchQuery, error) {
  contentType := c.ContentType()
  if strings.HasPrefix(contentType, "multipart/form-data") {
    return h.parseMultipart(c)
  }

  var req searchJSONRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    return services.SearchQuery{}, err
  }
  query := services.SearchQuery{Text: req.Text, TopK: req.TopK}
  if req.ImageB64 != "" {
    raw, err := base64.StdEncoding.DecodeString(req.ImageB64)
    if err != nil {
      return services.SearchQuery{}, err
    }
    query.ImageBytes = raw
  }
  return query, nil
}

func (h *SearchHandler) parseMultipart(c *gin.Context) (services.SearchQuery, error) {
  query := services.SearchQuery{Text: c.PostForm("text")}
  if raw := c.PostForm("top_k"); raw != "" {
    topK, err := strconv.Atoi(raw)
    if err != nil {
      return services.SearchQuery{}, err
    }
    query.TopK = topK
  }

  fileHeader, err := c.FormFile("image")
  if err == http.ErrMissingFile || (err != nil && strings.Contains(err.Error(), "no such file")) {
    return query, nil
  }
  if err != nil {
    return services.SearchQuery{}, err
  }
  file, err := fileHeader.Open()
  if err != nil {
    return services.SearchQuery{}, err
  }
  defer file.Close()
  raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
  if err != nil {
    return services.SearchQuery{}, err
  }
  query.ImageBytes = raw
  return query, nil
}
