package documents

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Create)
		docs.GET("", h.List)
		docs.GET("/:id", h.Get)
		docs.POST("/:id/archive", h.Archive)
	}
}

type workflowEntryRequest struct {
	SignerID        string `json:"signer_id"`
	SignerEmail     string `json:"signer_email" binding:"required"`
	SignerFirstName string `json:"signer_first_name"`
	SignerLastName  string `json:"signer_last_name"`
	Role            string `json:"role"`
	Order           int    `json:"order"`
	Required        *bool  `json:"required"`
}

type createDocumentRequest struct {
	Title           string                 `json:"title" binding:"required"`
	FileName        string                 `json:"file_name" binding:"required"`
	FilePath        string                 `json:"file_path" binding:"required"`
	FileSize        int64                  `json:"file_size"`
	Workflow        []workflowEntryRequest `json:"workflow"`
	SigningDeadline *time.Time             `json:"signing_deadline"`
	TestMode        bool                   `json:"test_mode"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
		return
	}

	entries := make([]WorkflowEntry, 0, len(req.Workflow))
	for _, e := range req.Workflow {
		signerID, _ := uuid.Parse(e.SignerID)
		required := true
		if e.Required != nil {
			required = *e.Required
		}
		entries = append(entries, WorkflowEntry{
			SignerID:        signerID,
			SignerEmail:     e.SignerEmail,
			SignerFirstName: e.SignerFirstName,
			SignerLastName:  e.SignerLastName,
			Role:            Role(e.Role),
			Order:           e.Order,
			Required:        required,
		})
	}

	doc, err := h.service.Create(c.Request.Context(), CreateRequest{
		Title:           req.Title,
		FileName:        req.FileName,
		FilePath:        req.FilePath,
		FileSize:        req.FileSize,
		Workflow:        entries,
		SigningDeadline: req.SigningDeadline,
		TestMode:        req.TestMode,
	}, actor)

	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c *gin.Context) {
	var createdBy *uuid.UUID
	if v := c.Query("created_by"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid created_by"})
			return
		}
		createdBy = &id
	}

	var status *Status
	if v := c.Query("status"); v != "" {
		st := Status(v)
		status = &st
	}

	docs, err := h.service.List(c.Request.Context(), createdBy, status)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, docs)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	detail, err := h.service.GetDetail(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) Archive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
		return
	}

	doc, err := h.service.Archive(c.Request.Context(), id, actor)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}
