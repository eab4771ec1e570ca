package events

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/gateway"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxEventBody    = 1 << 20
)

type Handler struct {
	reconciler *Reconciler
	gw         gateway.Gateway
	logger     *zap.Logger
}

func NewHandler(reconciler *Reconciler, gw gateway.Gateway, logger *zap.Logger) *Handler {
	return &Handler{reconciler: reconciler, gw: gw, logger: logger}
}

// RegisterRoutes mounts the webhook endpoint. The webhook is mounted on
// the unauthenticated group: its authenticity comes from the payload
// signature, not a bearer token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/signature", h.HandleWebhook)
}

// RegisterAPIRoutes mounts the manual resync endpoint on the
// authenticated API group.
func (h *Handler) RegisterAPIRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/resync", h.Resync)
}

// HandleWebhook receives provider events. Authenticity is verified
// before any business content is parsed. Once the payload is
// structurally understood the provider always gets a success
// acknowledgement, even when internal reconciliation fails: retry storms
// for conditions the provider did not cause help nobody.
func (h *Handler) HandleWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if !h.gw.VerifyEventAuthenticity(raw, c.GetHeader(signatureHeader)) {
		h.logger.Warn("Webhook rejected: invalid signature",
			zap.String("remote", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid event signature"})
		return
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	if err := h.reconciler.Apply(c.Request.Context(), ev); err != nil {
		// Internal failure: acknowledge anyway and reconcile later via
		// the manual resync path.
		h.logger.Error("Event reconciliation failed",
			zap.String("type", string(ev.Type)),
			zap.String("request_id", ev.RequestID),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Resync(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	detail, err := h.reconciler.Resync(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detail)
}
