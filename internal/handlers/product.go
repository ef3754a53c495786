package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/repos"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/services"
)

type ProductHandler struct {
  log       *logger.Logger
  ingestSvc services.IngestService
  products  repos.ProductRepo
}

func NewProductHandler(log *logger.Logger, ingestSvc services.IngestService, products repos.ProductRepo) *ProductHandler {
  return &ProductHandler{
    log:       log.With("handler", "ProductHandler"),
    ingestSvc: ingestSvc,
    products:  products,
  }
}

// POST /api/v1/products
// Ingests one scraped product and embeds it for retrieval.
func (h *ProductHandler) Ingest(c *gin.Context) {
  var input services.IngestInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  product, err := h.ingestSvc.Ingest(c.Request.Context(), input)
  if err != nil {
    respondDomainError(c, err)
    return
  }
  RespondOK(c, product)
}

// GET /api/v1/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  product, err := h.products.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    if errors.Is(err, repos.ErrProductNotFound) {
      RespondError(c, http.StatusNotFound, "not_found", err)
      return
    }
    RespondError(c, http.StatusInternalServerError, "internal_error", err)
    return
  }
  RespondOK(c, product)
}

// DELETE /api/v1/products/:id
// Removes the product, its images, its ledger rows, and its vector points.
func (h *ProductHandler) Delete(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  if err := h.ingestSvc.DeleteProduct(c.Request.Context(), id); err != nil {
    if errors.Is(err, repos.ErrProductNotFound) {
      RespondError(c, http.StatusNotFound, "not_found", err)
      return
    }
    respondDomainError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}
