package whatsapp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/clinic-webhook/internal/config"
	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
	client "github.com/mamadbah2/clinic-webhook/pkg/clients/whatsapp"
)

// ErrVerificationFailed is returned when a subscription handshake does not match.
var ErrVerificationFailed = errors.New("webhook verification failed")

// ErrInvalidSignature is returned when X-Hub-Signature-256 does not match the body.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrMissingRecipient is returned when a booking confirmation has no phone number.
var ErrMissingRecipient = errors.New("missing recipient")

const (
	sendTimeout = 10 * time.Second
	clinicName  = "Smile Clinic"
)

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	SendBookingConfirmation(ctx context.Context, req models.BookingConfirmationRequest) error
}

// BookingRecorder stores bookings confirmed over WhatsApp.
type BookingRecorder interface {
	Record(ctx context.Context, booking models.Booking) error
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg      config.WhatsAppConfig
	client   client.Client
	bookings BookingRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewMetaWhatsAppService wires a new service instance. bookings may be nil.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, bookings BookingRecorder, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:      cfg,
		client:   client,
		bookings: bookings,
		logger:   logger,
		now:      time.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token and returns the
// challenge to echo.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", fmt.Errorf("%w: unsupported hub.mode %q", ErrVerificationFailed, mode)
	}

	if subtle.ConstantTimeCompare([]byte(verifyToken), []byte(s.cfg.VerifyToken)) != 1 {
		return "", fmt.Errorf("%w: invalid verify token", ErrVerificationFailed)
	}

	return challenge, nil
}

// HandleWebhook processes one raw webhook body. Only the first entry, change
// and message are consulted; status updates, empty payloads and messages sent
// by the business number itself end without a reply.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s.cfg.AppSecret != "" && !ValidSignature(body, signature, s.cfg.AppSecret) {
		return ErrInvalidSignature
	}

	if len(bytes.TrimSpace(body)) == 0 {
		s.logger.Warn("empty webhook body")
		return nil
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	value, ok := firstChangeValue(payload)
	if !ok {
		s.logger.Warn("no change in webhook payload")
		return nil
	}

	if value.Statuses != nil {
		for _, status := range value.Statuses {
			s.logger.Info("status update received",
				zap.String("message_id", status.ID),
				zap.String("status", status.Status),
				zap.String("recipient_id", status.RecipientID))
		}
		return nil
	}

	if len(value.Messages) == 0 {
		s.logger.Warn("no message in webhook payload")
		return nil
	}

	if len(value.Messages) > 1 {
		s.logger.Info("ignoring batched messages beyond the first", zap.Int("count", len(value.Messages)))
	}

	msg := value.Messages[0]
	if s.isSelfEcho(msg, value.Metadata) {
		s.logger.Debug("ignoring echo from business number", zap.String("from", msg.From))
		return nil
	}

	return s.ClassifyAndReply(ctx, msg)
}

// ClassifyAndReply picks the auto-reply for msg, sends it to the sender and
// marks msg as read. The read receipt is attempted whether or not the reply
// went through.
func (s *MetaWhatsAppService) ClassifyAndReply(ctx context.Context, msg models.InboundMessage) error {
	text := models.MessageText(msg)
	intent := models.ClassifyIntent(text)

	s.logger.Info("incoming message classified",
		zap.String("from", msg.From),
		zap.String("message_id", msg.ID),
		zap.String("type", msg.Type),
		zap.String("text", text),
		zap.String("intent", string(intent.Type)))

	sendErr := s.sendText(ctx, msg.From, intent.Reply, true)
	if sendErr != nil {
		sendErr = fmt.Errorf("send reply to %s: %w", msg.From, sendErr)
	}

	var readErr error
	switch {
	case !s.cfg.MarkAsRead:
	case msg.ID == "":
		s.logger.Debug("message has no id, skipping read receipt", zap.String("from", msg.From))
	default:
		readCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		readErr = s.client.MarkAsRead(readCtx, msg.ID)
		cancel()
		if readErr == nil {
			s.logger.Debug("message marked as read", zap.String("message_id", msg.ID))
		}
	}

	return errors.Join(sendErr, readErr)
}

// SendBookingConfirmation notifies a patient about a booked appointment, with
// an optional image sent first, and records the booking. A failed image does
// not stop the text confirmation.
func (s *MetaWhatsAppService) SendBookingConfirmation(ctx context.Context, req models.BookingConfirmationRequest) error {
	if req.Phone == "" {
		return ErrMissingRecipient
	}

	messageText := fmt.Sprintf("👋 مرحبًا %s!\nتم حجز موعدك لخدمة %s في %s 🦷\n📅 %s", req.Name, req.Service, clinicName, req.Appointment)

	if req.HasImage() {
		ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
		resp, err := s.client.SendImageMessage(ctxWithTimeout, client.SendImageMessageRequest{
			To:      req.Phone,
			Link:    req.Image,
			Caption: messageText,
		})
		cancel()
		if err != nil {
			s.logger.Error("failed to send booking image", zap.String("to", req.Phone), zap.Error(err))
		} else {
			s.logger.Info("booking image sent", zap.String("to", req.Phone), zap.String("message_id", resp.MessageID()))
		}
	}

	if err := s.sendText(ctx, req.Phone, messageText+"\n\n📞 تواصل معنا لأي استفسار", false); err != nil {
		return fmt.Errorf("send booking confirmation to %s: %w", req.Phone, err)
	}

	if s.bookings != nil {
		booking := models.Booking{
			CreatedAt:   s.now().UTC(),
			Name:        req.Name,
			Phone:       req.Phone,
			Service:     req.Service,
			Appointment: req.Appointment,
			Status:      models.BookingStatusConfirmed,
		}
		if err := s.bookings.Record(ctx, booking); err != nil {
			s.logger.Error("failed to record booking", zap.String("phone", req.Phone), zap.Error(err))
		}
	}

	return nil
}

func (s *MetaWhatsAppService) sendText(ctx context.Context, to, body string, previewURL bool) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         to,
		Body:       body,
		PreviewURL: previewURL,
	})
	if err != nil {
		return err
	}

	s.logger.Info("reply sent", zap.String("to", to), zap.String("message_id", resp.MessageID()))
	s.logger.Debug("send message response", zap.Any("contacts", resp.Contacts), zap.Any("messages", resp.Messages))
	return nil
}

func (s *MetaWhatsAppService) isSelfEcho(msg models.InboundMessage, meta models.Metadata) bool {
	if msg.From == "" {
		return false
	}
	return msg.From == s.cfg.PhoneNumberID || msg.From == meta.PhoneNumberID
}

func firstChangeValue(payload models.WebhookPayload) (models.WebhookValue, bool) {
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return models.WebhookValue{}, false
	}
	return payload.Entry[0].Changes[0].Value, true
}
