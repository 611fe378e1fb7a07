package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebridge/internal/domain"
	"voicebridge/internal/metrics"
	"voicebridge/internal/usecase"
)

type fakeSession struct {
	status  domain.Status
	content string
	cleared bool
}

func (f *fakeSession) Status() domain.Status { return f.status }

func (f *fakeSession) ExportTranscript() (string, error) {
	if f.content == "" {
		return "", usecase.ErrTranscriptEmpty
	}
	return f.content, nil
}

func (f *fakeSession) ClearTranscript() {
	f.cleared = true
	f.content = ""
}

func serve(t *testing.T, handler http.Handler, method string, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	router := NewRouter(&fakeSession{}, nil, "out")

	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/healthz").Code)
	assert.Equal(t, "ready", serve(t, router, http.MethodGet, "/readyz").Body.String())
}

func TestMetricsEndpointUsesRegistry(t *testing.T) {
	m := metrics.NewMetrics()
	m.RecordExport()
	router := NewRouter(&fakeSession{}, m.Registry(), "out")

	rec := serve(t, router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicebridge_transcript_exports_total 1")
}

func TestStatusEndpoint(t *testing.T) {
	session := &fakeSession{status: domain.Status{
		State:       domain.SessionStateListening,
		Listening:   true,
		ToggleLabel: "Turkish ⇄ English",
	}}
	router := NewRouter(session, nil, "out")

	rec := serve(t, router, http.MethodGet, "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Listening)
	assert.Equal(t, "Turkish ⇄ English", got.ToggleLabel)
}

func TestTranscriptDownload(t *testing.T) {
	session := &fakeSession{content: "Merhaba Nasılsın "}
	router := NewRouter(session, nil, "AIandAIOT_translated_text")

	rec := serve(t, router, http.MethodGet, "/v1/transcript")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Merhaba Nasılsın ", rec.Body.String())
	assert.Equal(t, `attachment; filename="AIandAIOT_translated_text.txt"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestTranscriptDownloadEmpty(t *testing.T) {
	router := NewRouter(&fakeSession{}, nil, "out")

	rec := serve(t, router, http.MethodGet, "/v1/transcript")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTranscriptClear(t *testing.T) {
	session := &fakeSession{content: "Merhaba "}
	router := NewRouter(session, nil, "out")

	rec := serve(t, router, http.MethodDelete, "/v1/transcript")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, session.cleared)
	assert.Equal(t, http.StatusNotFound, serve(t, router, http.MethodGet, "/v1/transcript").Code)
}

func TestServerStartAndShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &fakeSession{}, nil, "out", zerolog.Nop())
	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServerStartBusyPort(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	addr := strings.TrimPrefix(busy.URL, "http://")
	srv := NewServer(addr, &fakeSession{}, nil, "out", zerolog.Nop())
	assert.Error(t, srv.Start())
}
