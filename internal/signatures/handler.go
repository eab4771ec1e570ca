package signatures

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sigs := rg.Group("/signatures")
	{
		sigs.GET("/:id", h.Get)
		sigs.GET("/:id/signing-url", h.SigningURL)
		sigs.GET("/stats/signers", h.StatsBySigner)
		sigs.GET("/stats/monthly", h.StatsByMonth)
	}
	rg.GET("/documents/:id/signatures", h.ListByDocument)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	record, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) ListByDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	records, err := h.service.ListByDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) SigningURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	url, err := h.service.SigningURL(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	if url == "" {
		c.JSON(http.StatusOK, gin.H{"signing_url": nil, "expired": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signing_url": url, "expired": false})
}

func (h *Handler) StatsBySigner(c *gin.Context) {
	stats, err := h.service.StatsBySigner(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) StatsByMonth(c *gin.Context) {
	stats, err := h.service.StatsByMonth(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
