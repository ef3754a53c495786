package handlers

import (
  "encoding/json"
  "errors"
  "io"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/services"
)

type SessionHandler struct {
  log        *logger.Logger
  sessionSvc services.SessionService
}

func NewSessionHandler(log *logger.Logger, sessionSvc services.SessionService) *SessionHandler {
  return &SessionHandler{
    log:        log.With("handler", "SessionHandler"),
    sessionSvc: sessionSvc,
  }
}

// GET /api/v1/session/:id/context
func (h *SessionHandler) GetContext(c *gin.Context) {
  blob, err := h.sessionSvc.GetContext(c.Request.Context(), c.Param("id"))
  if err != nil {
    if errors.Is(err, cache.ErrCacheMiss) {
      RespondError(c, http.StatusNotFound, "not_found", errors.New("session context not found"))
      return
    }
    RespondError(c, http.StatusInternalServerError, "internal_error", err)
    return
  }
  c.Data(http.StatusOK, "application/json", blob)
}

// PUT /api/v1/session/:id/context
func (h *SessionHandler) SetContext(c *gin.Context) {
  raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  if err := h.sessionSvc.SetContext(c.Request.Context(), c.Param("id"), json.RawMessage(raw)); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }
  c.Status(http.StatusNoContent)
}
