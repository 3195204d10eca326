package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/clinic-webhook/internal/config"
)

// Client exposes WhatsApp Cloud API operations used by the application.
type Client interface {
	SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendMessageResponse, error)
	SendImageMessage(ctx context.Context, req SendImageMessageRequest) (*SendMessageResponse, error)
	MarkAsRead(ctx context.Context, messageID string) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// SendTextMessageRequest represents a simplified text message payload.
type SendTextMessageRequest struct {
	To         string
	Body       string
	PreviewURL bool
}

// SendImageMessageRequest sends an image by public link.
type SendImageMessageRequest struct {
	To      string
	Link    string
	Caption string
}

// OutboundMessage is the send-message body understood by the Graph API.
type OutboundMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	RecipientType    string         `json:"recipient_type,omitempty"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *OutboundText  `json:"text,omitempty"`
	Image            *OutboundImage `json:"image,omitempty"`
}

// OutboundText is the text part of an OutboundMessage.
type OutboundText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// OutboundImage is the image part of an OutboundMessage.
type OutboundImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type readReceipt struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// SendMessageResponse mirrors the successful response from Meta.
type SendMessageResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the first message id, or "" when Meta returned none.
func (r *SendMessageResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// apiError represents a WhatsApp Cloud API error payload.
type apiError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorData    any    `json:"error_data"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendTextMessage posts a text message to a single recipient.
func (c *APIClient) SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendMessageResponse, error) {
	return c.send(ctx, OutboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               req.To,
		Type:             "text",
		Text: &OutboundText{
			Body:       req.Body,
			PreviewURL: req.PreviewURL,
		},
	})
}

// SendImageMessage posts an image message with an optional caption.
func (c *APIClient) SendImageMessage(ctx context.Context, req SendImageMessageRequest) (*SendMessageResponse, error) {
	return c.send(ctx, OutboundMessage{
		MessagingProduct: "whatsapp",
		To:               req.To,
		Type:             "image",
		Image: &OutboundImage{
			Link:    req.Link,
			Caption: req.Caption,
		},
	})
}

// MarkAsRead flags an inbound message as read.
func (c *APIClient) MarkAsRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("mark as read: empty message id")
	}

	_, err := c.post(ctx, readReceipt{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
	if err != nil {
		return fmt.Errorf("mark message %s as read: %w", messageID, err)
	}
	return nil
}

// send posts msg as given. An empty recipient is left for the Graph API to reject.
func (c *APIClient) send(ctx context.Context, msg OutboundMessage) (*SendMessageResponse, error) {
	result, err := c.post(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send whatsapp %s message: %w", msg.Type, err)
	}
	return result, nil
}

func (c *APIClient) post(ctx context.Context, payload any) (*SendMessageResponse, error) {
	result := new(SendMessageResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Error.Message
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		code := resp.StatusCode()
		if apiErr.Error.Code != 0 {
			code = apiErr.Error.Code
		}
		return nil, fmt.Errorf("whatsapp api error: status=%d, code=%d, message=%s", resp.StatusCode(), code, message)
	}

	return result, nil
}
