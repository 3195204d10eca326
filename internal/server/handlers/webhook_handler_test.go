package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/clinic-webhook/internal/async"
	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
	service "github.com/mamadbah2/clinic-webhook/internal/service/whatsapp"
)

type fakeMessagingService struct {
	mu            sync.Mutex
	bodies        []string
	signatures    []string
	confirmations []models.BookingConfirmationRequest
	handleErr     error
	handlePanic   bool
	confirmErr    error
	release       chan struct{}
}

func (f *fakeMessagingService) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if mode == "subscribe" && token == "valid" {
		return challenge, nil
	}
	return "", service.ErrVerificationFailed
}

func (f *fakeMessagingService) HandleWebhook(_ context.Context, body []byte, signature string) error {
	if f.release != nil {
		<-f.release
	}
	if f.handlePanic {
		panic("boom")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, string(body))
	f.signatures = append(f.signatures, signature)
	return f.handleErr
}

func (f *fakeMessagingService) SendBookingConfirmation(_ context.Context, req models.BookingConfirmationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, req)
	return f.confirmErr
}

func newWebhookEngine(svc service.MessagingService, group *async.Group) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(svc, group, nil)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(h.MethodNotAllowed)
	r.GET("/api/webhook", h.Verify)
	r.POST("/api/webhook", h.Receive)
	r.POST("/sendWhatsApp", h.SendBookingConfirmation)
	return r
}

func waitTasks(t *testing.T, group *async.Group) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, group.Wait(ctx))
}

func TestVerify(t *testing.T) {
	r := newWebhookEngine(&fakeMessagingService{}, async.NewGroup(time.Second, nil))

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{name: "valid", query: "hub.mode=subscribe&hub.verify_token=valid&hub.challenge=xyz123", wantCode: http.StatusOK, wantBody: "xyz123"},
		{name: "wrong token", query: "hub.mode=subscribe&hub.verify_token=wrong", wantCode: http.StatusForbidden, wantBody: "Forbidden"},
		{name: "no query", query: "", wantCode: http.StatusForbidden, wantBody: "Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/webhook?"+tt.query, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestReceiveAcknowledgesBeforeProcessing(t *testing.T) {
	svc := &fakeMessagingService{release: make(chan struct{})}
	group := async.NewGroup(time.Second, nil)
	r := newWebhookEngine(svc, group)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"entry":[]}`))
	req.Header.Set(service.SignatureHeader, "sha256=abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	svc.mu.Lock()
	assert.Empty(t, svc.bodies)
	svc.mu.Unlock()

	close(svc.release)
	waitTasks(t, group)

	assert.Equal(t, []string{`{"entry":[]}`}, svc.bodies)
	assert.Equal(t, []string{"sha256=abc"}, svc.signatures)
}

func TestReceiveAlwaysReturns200(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeMessagingService
		body string
	}{
		{name: "downstream error", svc: &fakeMessagingService{handleErr: errors.New("graph down")}, body: `{"entry":[]}`},
		{name: "invalid signature", svc: &fakeMessagingService{handleErr: service.ErrInvalidSignature}, body: `{}`},
		{name: "downstream panic", svc: &fakeMessagingService{handlePanic: true}, body: `{}`},
		{name: "unparsable body", svc: &fakeMessagingService{handleErr: errors.New("decode")}, body: `{not json`},
		{name: "empty body", svc: &fakeMessagingService{}, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := async.NewGroup(time.Second, nil)
			r := newWebhookEngine(tt.svc, group)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(tt.body)))
			waitTasks(t, group)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"received":true}`, w.Body.String())
		})
	}
}

func TestUnsupportedMethods(t *testing.T) {
	r := newWebhookEngine(&fakeMessagingService{}, async.NewGroup(time.Second, nil))

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(method, "/api/webhook", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
		})
	}
}

func TestSendBookingConfirmationHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeMessagingService{}
		r := newWebhookEngine(svc, async.NewGroup(time.Second, nil))

		w := httptest.NewRecorder()
		body := `{"name":"Lina","phone":"962700000000","service":"Cleaning","appointment":"Mon 10:00","image":"https://x/y.png"}`
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sendWhatsApp", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
		require.Len(t, svc.confirmations, 1)
		assert.Equal(t, models.BookingConfirmationRequest{
			Name: "Lina", Phone: "962700000000", Service: "Cleaning", Appointment: "Mon 10:00", Image: "https://x/y.png",
		}, svc.confirmations[0])
	})

	t.Run("missing phone", func(t *testing.T) {
		svc := &fakeMessagingService{}
		r := newWebhookEngine(svc, async.NewGroup(time.Second, nil))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sendWhatsApp", strings.NewReader(`{"name":"Lina"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Missing name or phone"}`, w.Body.String())
		assert.Empty(t, svc.confirmations)
	})

	t.Run("invalid json", func(t *testing.T) {
		r := newWebhookEngine(&fakeMessagingService{}, async.NewGroup(time.Second, nil))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sendWhatsApp", strings.NewReader(`[`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("send failure", func(t *testing.T) {
		svc := &fakeMessagingService{confirmErr: errors.New("whatsapp api error: code=190")}
		r := newWebhookEngine(svc, async.NewGroup(time.Second, nil))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sendWhatsApp", strings.NewReader(`{"name":"Lina","phone":"1"}`)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"whatsapp api error: code=190"}`, w.Body.String())
	})
}
