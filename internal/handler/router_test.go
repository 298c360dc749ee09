package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodenPaul86/docmatic/internal/middleware"
	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

type sessionServiceMock struct {
	ended      string
	background string
	foreground string
}

func (m *sessionServiceMock) Start(ctx context.Context) (*models.SessionToken, error) {
	return &models.SessionToken{Token: "good", SessionID: "s-1", ExpiresIn: 3600}, nil
}

func (m *sessionServiceMock) ValidateToken(token string) (*models.SessionClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid session token")
	}
	return &models.SessionClaims{SessionID: "s-1"}, nil
}

func (m *sessionServiceMock) End(sessionID string)        { m.ended = sessionID }
func (m *sessionServiceMock) Background(sessionID string) { m.background = sessionID }

func (m *sessionServiceMock) Foreground(ctx context.Context, sessionID string) error {
	m.foreground = sessionID
	return nil
}

type quotaStub models.QuotaState

func (q quotaStub) State(context.Context) models.QuotaState { return models.QuotaState(q) }

type widgetStub struct{}

func (widgetStub) Latest(context.Context) (*models.WidgetSnapshot, error) {
	return &models.WidgetSnapshot{GeneratedAt: time.Unix(0, 0).UTC(), Documents: []models.DocumentSummary{{ID: "d1"}}}, nil
}

type entitlementStub struct{ premium bool }

func (e *entitlementStub) IsPremiumActive(context.Context) bool { return e.premium }
func (e *entitlementStub) SetPremium(active bool)               { e.premium = active }

type summaryServiceMock struct{}

func (summaryServiceMock) Summarize(ctx context.Context, sessionID, documentID, length string) (*models.SummaryResult, error) {
	return &models.SummaryResult{DocumentID: documentID, Succeeded: false, Message: "Couldn't summarize this document."}, nil
}

func buildRouter(t *testing.T, development bool) (*gin.Engine, *sessionServiceMock, *entitlementStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{}
	entitlement := &entitlementStub{}
	r := gin.New()
	RegisterRoutes(r, RouterConfig{APIPrefix: "/api/v1", Development: development}, Handlers{
		Sessions:  NewSessionHandler(sessions),
		Documents: NewDocumentHandler(&documentServiceMock{}),
		Captures:  NewCaptureHandler(&captureServiceMock{}, 0, "/api/v1"),
		Exports:   NewExportHandler(newExportMock(t)),
		Summaries: NewSummaryHandler(summaryServiceMock{}),
		Account:   NewAccountHandler(quotaStub{Count: 2, FreeLimit: 3, RemainingFree: 1}, widgetStub{}, entitlement),
		Metrics:   NewMetricsHandler(nil, nil),
		Session:   middleware.Session(sessions),
	})
	return r, sessions, entitlement
}

func authed(method, url string, body []byte) *http.Request {
	req, _ := http.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer good")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestRouterPublicRoutes(t *testing.T) {
	r, _, _ := buildRouter(t, false)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, performRequest(r, req).Code)

	req, _ = http.NewRequest(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, performRequest(r, req).Code)

	req, _ = http.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusCreated, performRequest(r, req).Code)

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/exports/good", nil)
	assert.Equal(t, http.StatusOK, performRequest(r, req).Code)
}

func TestRouterRequiresSession(t *testing.T) {
	r, _, _ := buildRouter(t, false)
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	assert.Equal(t, http.StatusUnauthorized, performRequest(r, req).Code)

	resp := performRequest(r, authed(http.MethodGet, "/api/v1/quota", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"remainingFree":1`)
}

func TestRouterSessionLifecycle(t *testing.T) {
	r, sessions, _ := buildRouter(t, false)
	assert.Equal(t, http.StatusNoContent, performRequest(r, authed(http.MethodPost, "/api/v1/sessions/background", nil)).Code)
	assert.Equal(t, http.StatusNoContent, performRequest(r, authed(http.MethodPost, "/api/v1/sessions/foreground", nil)).Code)
	assert.Equal(t, http.StatusNoContent, performRequest(r, authed(http.MethodDelete, "/api/v1/sessions", nil)).Code)
	assert.Equal(t, "s-1", sessions.background)
	assert.Equal(t, "s-1", sessions.foreground)
	assert.Equal(t, "s-1", sessions.ended)
}

func TestRouterEntitlementToggleOnlyInDevelopment(t *testing.T) {
	r, _, _ := buildRouter(t, false)
	resp := performRequest(r, authed(http.MethodPut, "/api/v1/entitlement", []byte(`{"premium":true}`)))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	r, _, entitlement := buildRouter(t, true)
	resp = performRequest(r, authed(http.MethodPut, "/api/v1/entitlement", []byte(`{"premium":true}`)))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, entitlement.premium)

	resp = performRequest(r, authed(http.MethodPut, "/api/v1/entitlement", []byte(`{}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRouterSummaryFailureIsOK(t *testing.T) {
	r, _, _ := buildRouter(t, false)
	resp := performRequest(r, authed(http.MethodPost, "/api/v1/documents/d1/summary", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Couldn't summarize this document.")

	resp = performRequest(r, authed(http.MethodPost, "/api/v1/documents/d1/summary", []byte(`{"length":"huge"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRouterWidgetSnapshot(t *testing.T) {
	r, _, _ := buildRouter(t, false)
	resp := performRequest(r, authed(http.MethodGet, "/api/v1/widget/snapshot", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"id":"d1"`)
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
