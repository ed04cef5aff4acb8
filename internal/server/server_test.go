package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-onepage/internal/config"
	"github.com/jonathan/resume-onepage/internal/db"
	"github.com/jonathan/resume-onepage/internal/export"
	"github.com/jonathan/resume-onepage/internal/oracle"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/server/ratelimit"
	"github.com/jonathan/resume-onepage/internal/types"
)

type mockExporter struct {
	requests []export.Request
	result   *export.Result
	err      error
}

func (m *mockExporter) Export(_ context.Context, req export.Request) (*export.Result, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockHistory struct {
	loadout string
	limit   int
	records []db.ExportRecord
	err     error
}

func (m *mockHistory) ListExports(_ context.Context, loadoutID string, limit int) ([]db.ExportRecord, error) {
	m.loadout = loadoutID
	m.limit = limit
	return m.records, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.err
}

func fittingResult() *export.Result {
	return &export.Result{
		Artifact: []byte("%PDF-1.5 fake"),
		Filename: "backend-ats-classic-resume.pdf",
		Template: rendering.GetTemplate(rendering.TemplateATSClassic),
		Summary: &types.CompressionState{
			FontScale:       1.0,
			LineHeightScale: 0.96,
			Iterations:      3,
			CanFit:          true,
			LeversApplied: []types.Lever{
				{Kind: types.LeverBulletReduction, Target: "Acme", Value: 3},
				{Kind: types.LeverLineHeight, Value: 0.96},
			},
		},
	}
}

func noRateLimit() *ratelimit.Config {
	return &ratelimit.Config{Enabled: false}
}

func newTestServer(t *testing.T, cfg Config, deps Deps) http.Handler {
	t.Helper()
	if cfg.RateLimit == nil {
		cfg.RateLimit = noRateLimit()
	}
	return New(cfg, deps).Handler()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name         string
		database     Pinger
		wantStatus   int
		wantDatabase string
	}{
		{name: "no database", wantStatus: http.StatusOK, wantDatabase: "disabled"},
		{name: "database up", database: &mockPinger{}, wantStatus: http.StatusOK, wantDatabase: "ok"},
		{name: "database down", database: &mockPinger{err: errors.New("refused")}, wantStatus: http.StatusServiceUnavailable, wantDatabase: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Config{}, Deps{Database: tt.database})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDatabase, decodeBody(t, rec)["database"])
		})
	}
}

func TestTemplates(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Templates []rendering.Template `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Templates, 2)
	assert.Equal(t, rendering.TemplateATSClassic, body.Templates[0].ID)
}

func TestExportLoadout_Headers(t *testing.T) {
	exp := &mockExporter{result: fittingResult()}
	h := newTestServer(t, Config{}, Deps{Exporter: exp})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend?template=ats-classic", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="backend-ats-classic-resume.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Equal(t, "Reduced bullets for Acme to 3; lineHeight → 0.96", rec.Header().Get("X-Compression-Log"))
	assert.Equal(t, "1.0000", rec.Header().Get("X-Font-Scale"))
	assert.Equal(t, "0.9600", rec.Header().Get("X-Line-Height-Scale"))
	assert.Equal(t, "3", rec.Header().Get("X-Iterations"))
	assert.Empty(t, rec.Header().Get("X-PDF-Warning"))
	assert.Equal(t, "%PDF-1.5 fake", rec.Body.String())

	require.Len(t, exp.requests, 1)
	assert.Equal(t, "backend", exp.requests[0].LoadoutID)
	assert.Equal(t, "ats-classic", exp.requests[0].TemplateID)
	assert.Nil(t, exp.requests[0].Document)
}

func TestExportLoadout_OverflowWarning(t *testing.T) {
	res := fittingResult()
	res.Summary.CanFit = false
	res.Summary.Warning = "overflow"
	h := newTestServer(t, Config{}, Deps{Exporter: &mockExporter{result: res}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, PDFWarning, rec.Header().Get("X-PDF-Warning"))
}

func TestExportLoadout_UnknownTemplate(t *testing.T) {
	exp := &mockExporter{result: fittingResult()}
	h := newTestServer(t, Config{}, Deps{Exporter: exp})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend?template=fancy", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
	assert.Empty(t, exp.requests)
}

func TestExportLoadout_PhotoResolvedAgainstHost(t *testing.T) {
	exp := &mockExporter{result: fittingResult()}
	h := newTestServer(t, Config{}, Deps{Exporter: exp})

	req := httptest.NewRequest(http.MethodGet, "/export/backend?template=modern-dark&photo=/img/me.png", nil)
	req.Host = "resume.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, exp.requests, 1)
	assert.Equal(t, "http://resume.example.com/img/me.png", exp.requests[0].PhotoURL)
}

func TestExport_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: &export.NotFoundError{LoadoutID: "nope"}, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "invalid rules", err: &types.InvalidRulesError{Field: "min_bullets", Message: "bad"}, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "timeout", err: &oracle.RenderTimeoutError{Operation: "probe", Timeout: time.Second}, wantStatus: http.StatusGatewayTimeout, wantCode: "render_timeout"},
		{name: "renderer down", err: &oracle.RendererUnavailableError{Renderer: "pdflatex", Message: "not installed"}, wantStatus: http.StatusServiceUnavailable, wantCode: "renderer_unavailable"},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Config{}, Deps{Exporter: &mockExporter{err: tt.err}})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/nope", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, tt.err.Error(), body["message"])
		})
	}
}

func TestExport_NoExporter(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportDocument(t *testing.T) {
	exp := &mockExporter{result: fittingResult()}
	h := newTestServer(t, Config{}, Deps{Exporter: exp})

	body := `{
		"template_id": "modern-dark",
		"photo_url": "https://cdn.example.com/me.png",
		"document": {
			"name": "Jane Doe",
			"slug": "jane",
			"export_rules": {"max_projects": 2},
			"experiences": [{"id": "e1", "company": "Acme", "role": "Engineer", "bullets": [{"id": "b1", "text": "Shipped it", "impact_score": 8}]}]
		}
	}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, exp.requests, 1)
	req := exp.requests[0]
	assert.Equal(t, "modern-dark", req.TemplateID)
	assert.Equal(t, "https://cdn.example.com/me.png", req.PhotoURL)
	require.NotNil(t, req.Document)
	assert.Equal(t, "Jane Doe", req.Document.Name)
	assert.Equal(t, 2, req.Document.Rules.MaxProjects)
	assert.Equal(t, types.DefaultExportRules().MaxBulletsPerRole, req.Document.Rules.MaxBulletsPerRole)
}

func TestExportDocument_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "not json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "missing document", body: `{"template_id": "ats-classic"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown template", body: `{"template_id": "fancy", "document": {"name": "A", "slug": "a"}}`, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"document": {"name": "` + strings.Repeat("x", maxRequestBody) + `"}}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &mockExporter{result: fittingResult()}
			h := newTestServer(t, Config{}, Deps{Exporter: exp})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Empty(t, exp.requests)
		})
	}
}

func TestExportHistory(t *testing.T) {
	id := uuid.New()
	hist := &mockHistory{records: []db.ExportRecord{{ID: id, LoadoutID: "backend", TemplateID: "ats-classic", CanFit: true, Iterations: 2}}}
	h := newTestServer(t, Config{}, Deps{History: hist})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend/history?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "backend", hist.loadout)
	assert.Equal(t, 5, hist.limit)

	body := decodeBody(t, rec)
	assert.Equal(t, "backend", body["loadout"])
	exports, ok := body["exports"].([]any)
	require.True(t, ok)
	assert.Len(t, exports, 1)
}

func TestExportHistory_Limits(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{query: "", wantStatus: http.StatusOK, wantLimit: db.DefaultHistoryLimit},
		{query: "?limit=100", wantStatus: http.StatusOK, wantLimit: 100},
		{query: "?limit=0", wantStatus: http.StatusBadRequest},
		{query: "?limit=101", wantStatus: http.StatusBadRequest},
		{query: "?limit=ten", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hist := &mockHistory{}
			h := newTestServer(t, Config{}, Deps{History: hist})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend/history"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantLimit, hist.limit)
				assert.Equal(t, []any{}, decodeBody(t, rec)["exports"])
			}
		})
	}
}

func TestExportHistory_Unavailable(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		h := newTestServer(t, Config{}, Deps{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend/history", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("store error", func(t *testing.T) {
		h := newTestServer(t, Config{}, Deps{History: &mockHistory{err: errors.New("db down")}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend/history", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAuth(t *testing.T) {
	verifier := NewJWTVerifier(&config.JWTConfig{Secret: testSecret})
	exp := &mockExporter{result: fittingResult()}
	h := newTestServer(t, Config{Validator: verifier.AsTokenValidator()}, Deps{Exporter: exp})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/backend", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid admin token", func(t *testing.T) {
		token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(uuid.New(), time.Hour))
		req := httptest.NewRequest(http.MethodGet, "/export/backend", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("viewer token", func(t *testing.T) {
		claims := adminClaims(uuid.New(), time.Hour)
		claims.Role = "viewer"
		token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)
		req := httptest.NewRequest(http.MethodPost, "/export", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("public routes stay open", func(t *testing.T) {
		for _, path := range []string{"/health", "/templates"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	assert.Len(t, exp.requests, 1)
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-PDF-Warning")
}

func TestRateLimit_Export(t *testing.T) {
	rl := &ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(2, time.Hour),
	}
	h := newTestServer(t, Config{RateLimit: rl}, Deps{Exporter: &mockExporter{result: fittingResult()}})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	// Burst for a limit of 2 is 1.
	first := get("/export/a")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))

	second := get("/export/b")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeBody(t, second)["error"])

	assert.Equal(t, http.StatusOK, get("/health").Code)
}

func TestResolvePhotoURL(t *testing.T) {
	tests := []struct {
		name  string
		photo string
		tls   bool
		want  string
	}{
		{name: "empty", photo: "", want: ""},
		{name: "absolute", photo: "https://cdn.example.com/p.png", want: "https://cdn.example.com/p.png"},
		{name: "data url", photo: "data:image/png;base64,AAAA", want: "data:image/png;base64,AAAA"},
		{name: "root relative", photo: "/static/p.png", want: "http://api.example.com/static/p.png"},
		{name: "relative over tls", photo: "p.png", tls: true, want: "https://api.example.com/p.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/export/x", nil)
			req.Host = "api.example.com"
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			assert.Equal(t, tt.want, resolvePhotoURL(req, tt.photo))
		})
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", RateLimit: noRateLimit()}, Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
