package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/services"
)

// respondDomainError maps the retrieval error taxonomy onto HTTP statuses.
// Query encode failures carry ErrFusionInput alongside the specific sentinel
// (ErrDecode, ErrModelUnavailable); the specific cases are checked first so
// the more precise status wins. Anything outside the taxonomy is a plain 500.
func respondDomainError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, services.ErrInvalidQuery):
    RespondError(c, http.StatusBadRequest, "invalid_query", err)
  case errors.Is(err, services.ErrDecode):
    RespondError(c, http.StatusUnprocessableEntity, "decode_failed", err)
  case errors.Is(err, services.ErrModelUnavailable):
    RespondError(c, http.StatusServiceUnavailable, "model_unavailable", err)
  case errors.Is(err, services.ErrRetrievalUnavailable):
    RespondError(c, http.StatusServiceUnavailable, "retrieval_unavailable", err)
  case errors.Is(err, services.ErrFusionInput):
    RespondError(c, http.StatusBadGateway, "fusion_input", err)
  default:
    RespondError(c, http.StatusInternalServerError, "internal_error", err)
  }
}
