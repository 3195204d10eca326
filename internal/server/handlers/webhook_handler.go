package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/clinic-webhook/internal/async"
	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
	service "github.com/mamadbah2/clinic-webhook/internal/service/whatsapp"
)

// TaskRunner starts work that must not hold up the HTTP response.
type TaskRunner interface {
	Go(ctx context.Context, name string, task async.Task)
}

// WebhookHandler handles inbound and outbound WhatsApp HTTP events.
type WebhookHandler struct {
	svc    service.MessagingService
	tasks  TaskRunner
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, tasks TaskRunner, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, tasks: tasks, logger: logger}
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	resp, err := h.svc.VerifyWebhookToken(mode, token, challenge)
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.String("mode", mode), zap.Error(err))
		c.String(http.StatusForbidden, "Forbidden")
		return
	}

	h.logger.Info("webhook verified")
	c.String(http.StatusOK, resp)
}

// Receive acknowledges a webhook POST from Meta and hands the body to the
// messaging service in the background. The response is always 200: anything
// else makes Meta retry the delivery.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("failed reading webhook body", zap.Error(err))
		c.JSON(http.StatusOK, models.AckResponse{Received: true})
		return
	}

	signature := c.GetHeader(service.SignatureHeader)
	clientIP := c.ClientIP()

	c.JSON(http.StatusOK, models.AckResponse{Received: true})

	h.tasks.Go(c.Request.Context(), "webhook", func(ctx context.Context) error {
		err := h.svc.HandleWebhook(ctx, body, signature)
		if errors.Is(err, service.ErrInvalidSignature) {
			h.logger.Warn("dropping webhook with invalid signature", zap.String("client_ip", clientIP))
			return nil
		}
		return err
	})
}

// MethodNotAllowed answers requests whose path exists under another method.
func (h *WebhookHandler) MethodNotAllowed(c *gin.Context) {
	h.logger.Warn("unsupported method", zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// SendBookingConfirmation sends a booking confirmation to a patient.
func (h *WebhookHandler) SendBookingConfirmation(c *gin.Context) {
	var req models.BookingConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid booking confirmation payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing name or phone"})
		return
	}

	if err := h.svc.SendBookingConfirmation(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending booking confirmation", zap.String("phone", req.Phone), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
