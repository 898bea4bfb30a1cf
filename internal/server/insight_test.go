package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/aide/internal/insight"
)

type stubInsight struct {
	inputUID  string
	inputConv insight.Conversation
	proj      insight.Projection
	projErr   error
}

func (s *stubInsight) HandleUserInput(uid string, conv insight.Conversation) {
	s.inputUID = uid
	s.inputConv = conv
}

func (s *stubInsight) CurrentProjection(ctx context.Context, uid string) (insight.Projection, error) {
	return s.proj, s.projErr
}

func signToken(t *testing.T, secret []byte, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestInsightInputAccepted(t *testing.T) {
	e := echo.New()
	svc := &stubInsight{}
	handler := &InsightHandler{Service: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/insight/input",
		strings.NewReader(`{"messages":[{"role":"user","content":"I live in Berlin"}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := handler.input(ctx); err != nil {
		t.Fatalf("input: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	if svc.inputUID != "user-1" || len(svc.inputConv) != 1 {
		t.Fatalf("unexpected dispatch: uid=%q conv=%v", svc.inputUID, svc.inputConv)
	}
}

func TestInsightInputRequiresMessages(t *testing.T) {
	e := echo.New()
	handler := &InsightHandler{Service: &stubInsight{}}

	req := httptest.NewRequest(http.MethodPost, "/api/insight/input", strings.NewReader(`{"messages":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := handler.input(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestInsightProfile(t *testing.T) {
	e := echo.New()
	svc := &stubInsight{proj: insight.Projection{
		ProfileData: map[string]interface{}{
			"location": map[string]interface{}{"city": map[string]interface{}{"value": "Berlin"}},
		},
	}}
	handler := &InsightHandler{Service: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/insight/profile", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := handler.profile(ctx); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var proj insight.Projection
	if err := json.Unmarshal(rec.Body.Bytes(), &proj); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if v, ok := insight.DigMap(proj.ProfileData, "location", "city"); !ok || v.(map[string]interface{})["value"] != "Berlin" {
		t.Fatalf("unexpected projection %v", proj.ProfileData)
	}
}

func TestInsightProfileError(t *testing.T) {
	e := echo.New()
	handler := &InsightHandler{Service: &stubInsight{projErr: fmt.Errorf("store down")}}

	req := httptest.NewRequest(http.MethodGet, "/api/insight/profile", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := handler.profile(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
}

func TestWithAuth(t *testing.T) {
	e := echo.New()
	secret := []byte("test-secret")
	next := func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	}
	wrapped := withAuth(next, secret)

	// No token.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := wrapped(e.NewContext(req, rec))
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", err)
	}

	// Garbage token.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	err = wrapped(e.NewContext(req, rec))
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %v", err)
	}

	// Wrong secret.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, []byte("other-secret"), "user-1"))
	rec = httptest.NewRecorder()
	err = wrapped(e.NewContext(req, rec))
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %v", err)
	}

	// Valid bearer token.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1"))
	rec = httptest.NewRecorder()
	if err := wrapped(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected valid token to pass: %v", err)
	}
	if rec.Body.String() != "user-1" {
		t.Fatalf("expected subject as user_id, got %q", rec.Body.String())
	}

	// Valid cookie token.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: signToken(t, secret, "user-2")})
	rec = httptest.NewRecorder()
	if err := wrapped(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected cookie token to pass: %v", err)
	}
	if rec.Body.String() != "user-2" {
		t.Fatalf("expected cookie subject, got %q", rec.Body.String())
	}
}
