package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
	appmiddleware "rfxlicense/internal/middleware"
)

// stubLicenseService returns canned values per method.
type stubLicenseService struct {
	key       string
	keyErr    error
	trialLic  *domain.License
	trialErr  error
	statusLic *domain.License
	statusErr error
}

func (s *stubLicenseService) GetOrCreateKey(ctx context.Context, ownerID string) (string, error) {
	return s.key, s.keyErr
}

func (s *stubLicenseService) RequestTrial(ctx context.Context, ownerID string) (*domain.License, error) {
	return s.trialLic, s.trialErr
}

func (s *stubLicenseService) Status(ctx context.Context, ownerID string) (*domain.License, error) {
	return s.statusLic, s.statusErr
}

func newLicenseServer(t *testing.T, svc *stubLicenseService) *httptest.Server {
	t.Helper()
	handler := NewLicenseHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Use(appmiddleware.RequestID)
	r.Mount("/", handler.Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestIssueKey(t *testing.T) {
	svc := &stubLicenseService{key: "RFX-1A2B-3C4D-5E6F-7A8B"}
	srv := newLicenseServer(t, svc)

	resp := postJSON(t, srv.URL+"/key", "", `{"owner_id":"owner-1001"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "RFX-1A2B-3C4D-5E6F-7A8B", body["license_key"])
	assert.Equal(t, "owner-1001", body["owner_id"])
}

func TestIssueKeyMissingOwner(t *testing.T) {
	srv := newLicenseServer(t, &stubLicenseService{key: "RFX-1A2B-3C4D-5E6F-7A8B"})

	resp := postJSON(t, srv.URL+"/key", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestRequestTrialEndpoint(t *testing.T) {
	expires := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	svc := &stubLicenseService{trialLic: &domain.License{
		Key:       "RFX-1A2B-3C4D-5E6F-7A8B",
		OwnerID:   "owner-1001",
		Type:      domain.TypeTrial,
		Status:    domain.StatusActive,
		ExpiresAt: &expires,
		TrialUsed: true,
	}}
	srv := newLicenseServer(t, svc)

	resp := postJSON(t, srv.URL+"/trial", "", `{"owner_id":"owner-1001"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var lic domain.License
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lic))
	assert.Equal(t, domain.TypeTrial, lic.Type)
	assert.Equal(t, domain.StatusActive, lic.Status)
}

func TestRequestTrialAlreadyUsed(t *testing.T) {
	svc := &stubLicenseService{trialErr: apperrors.ErrTrialAlreadyUsed}
	srv := newLicenseServer(t, svc)

	resp := postJSON(t, srv.URL+"/trial", "", `{"owner_id":"owner-1001"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var problem map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, float64(http.StatusConflict), problem["status"])
	assert.NotEmpty(t, problem["trace_id"])
}

func TestStatusEndpoint(t *testing.T) {
	svc := &stubLicenseService{statusLic: &domain.License{
		Key:     "RFX-1A2B-3C4D-5E6F-7A8B",
		OwnerID: "owner-1001",
		Type:    domain.TypeMonthly,
		Status:  domain.StatusExpired,
	}}
	srv := newLicenseServer(t, svc)

	resp, err := http.Get(srv.URL + "/status/owner-1001")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var lic domain.License
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lic))
	assert.Equal(t, domain.StatusExpired, lic.Status)
}

func TestStatusUnknownOwnerEndpoint(t *testing.T) {
	svc := &stubLicenseService{statusErr: apperrors.ErrKeyNotFound}
	srv := newLicenseServer(t, svc)

	resp, err := http.Get(srv.URL + "/status/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProblemBodyShape(t *testing.T) {
	svc := &stubLicenseService{keyErr: apperrors.ErrKeyNotFound}
	srv := newLicenseServer(t, svc)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/key", strings.NewReader(`{"owner_id":"owner-1001"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trace-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "/errors/key_not_found", problem["type"])
	assert.Equal(t, "Not Found", problem["title"])
	assert.Equal(t, "trace-42", problem["trace_id"])
	assert.Equal(t, "/key", problem["instance"])
}
