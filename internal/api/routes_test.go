package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/internal/auth"
	"github.com/openmico/speakerbridge/usecase/speaker"
)

// scriptedRunner serves canned stdout for scripts matching a substring.
type scriptedRunner struct {
	outputs map[string]string
}

func (r *scriptedRunner) RunShell(_ context.Context, script string, _ time.Duration) *entities.CommandResult {
	for match, out := range r.outputs {
		if strings.Contains(script, match) {
			return &entities.CommandResult{Stdout: out}
		}
	}
	return nil
}

func newTestServer(t *testing.T, secret string, outputs map[string]string) (*echo.Echo, *auth.Authenticator) {
	t.Helper()
	controller := speaker.NewController(&scriptedRunner{outputs: outputs}, zap.NewNop())
	authn := auth.NewAuthenticator(secret)
	e := echo.New()
	InitRoutes(e, controller, nil, authn, zap.NewNop())
	return e, authn
}

func TestHealthNeedsNoAuth(t *testing.T) {
	e, _ := newTestServer(t, "secret", nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestControlAPIRequiresToken(t *testing.T) {
	e, authn := newTestServer(t, "secret", nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/speaker/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rec.Code)
	}

	token, err := authn.GenerateControllerToken("test")
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/speaker/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}

	var body StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Status != string(entities.PlaybackIdle) {
		t.Errorf("status = %q, want idle", body.Status)
	}
}

func TestControlAPIOpenWithoutSecret(t *testing.T) {
	e, _ := newTestServer(t, "", nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/speaker/status", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", rec.Code)
	}
}

func TestPlayValidation(t *testing.T) {
	e, _ := newTestServer(t, "", nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"neither text nor url", `{}`, http.StatusBadRequest},
		{"both text and url", `{"text":"a","url":"http://x"}`, http.StatusBadRequest},
		{"text only", `{"text":"hello"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/speaker/play", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestDeviceEndpoint(t *testing.T) {
	e, _ := newTestServer(t, "", map[string]string{"micocfg": "model123 SN456"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/speaker/device", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info entities.DeviceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if info.Model != "model123" || info.SerialNumber != "SN456" {
		t.Errorf("device = %+v", info)
	}
}

func TestBootEndpointRejectsUnknownSlot(t *testing.T) {
	e, _ := newTestServer(t, "", nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/speaker/boot", strings.NewReader(`{"slot":"boot7"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConversationsUnconfigured(t *testing.T) {
	e, _ := newTestServer(t, "", nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations?device_id=sn", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when log storage is unconfigured", rec.Code)
	}
}
