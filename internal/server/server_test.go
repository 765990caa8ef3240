package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spark-map/atlas-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubStore satisfies store.Store with canned run history.
type stubStore struct {
	runs    []store.Run
	listErr error
}

func (s *stubStore) CreateRun(context.Context, string) (*store.Run, error) {
	return nil, eris.New("not implemented")
}
func (s *stubStore) CompleteRun(context.Context, string, any, string) error { return nil }
func (s *stubStore) FailRun(context.Context, string, error) error           { return nil }

func (s *stubStore) GetRun(_ context.Context, id string) (*store.Run, error) {
	for _, r := range s.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, eris.Errorf("run not found: %s", id)
}

func (s *stubStore) ListRuns(_ context.Context, filter store.RunFilter) ([]store.Run, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []store.Run
	for _, r := range s.runs {
		if filter.Command != "" && r.Command != filter.Command {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

func newTestServer(t *testing.T, st store.Store) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	srv := httptest.NewServer(Router(dir, st))
	t.Cleanup(srv.Close)
	return srv, dir
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestListRuns(t *testing.T) {
	st := &stubStore{runs: []store.Run{
		{ID: "run-1", Command: "join", Status: store.RunStatusComplete},
		{ID: "run-2", Command: "fetch", Status: store.RunStatusFailed},
	}}
	srv, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	assert.Len(t, runs, 2)
}

func TestListRuns_CommandFilter(t *testing.T) {
	st := &stubStore{runs: []store.Run{
		{ID: "run-1", Command: "join"},
		{ID: "run-2", Command: "fetch"},
	}}
	srv, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/api/runs?command=join")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var runs []store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestListRuns_EmptyIsJSONArray(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []any{}, body)
}

func TestListRuns_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/api/runs?limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRuns_StoreError(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{listErr: eris.New("db locked")})

	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	st := &stubStore{runs: []store.Run{{ID: "run-1", Command: "join"}}}
	srv, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/api/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "join", run.Command)

	missing, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	defer missing.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestStaticFiles(t *testing.T) {
	srv, dir := newTestServer(t, &stubStore{})
	payload := `{"type":"FeatureCollection","features":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracts.geojson"), []byte(payload), 0o644))

	resp, err := http.Get(srv.URL + "/tracts.geojson")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
