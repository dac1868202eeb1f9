package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/config"
	"tinyme-go/internal/fileaccess"
	"tinyme-go/internal/jobs"
	"tinyme-go/internal/logger"
	"tinyme-go/internal/options"
	"tinyme-go/internal/preset"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	*Server
	session *jobs.Session
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	log := logger.Discard()
	files := fileaccess.NewLocal(nil)
	backend := compressor.NewImagingBackend(compressor.Config{Workers: 2, FFmpegPath: "/nonexistent/ffmpeg"}, log)
	session := jobs.NewSession(backend, log, jobs.WithPreviews(files))
	session.Start(context.Background())

	s := NewServer(config.DefaultConfig(), session, files, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		session.Close()
	})
	return testServer{Server: s, session: session}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func (s testServer) do(t *testing.T, method, path string, body interface{}) (int, apiEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env apiEnvelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

// TestPresetThenOverride verifies that editing a field after a preset clears the preset id.
func TestPresetThenOverride(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, code)
	var presets []preset.Preset
	require.NoError(t, json.Unmarshal(env.Data, &presets))
	assert.Len(t, presets, len(preset.All()))

	code, env = s.do(t, http.MethodPost, "/api/options/preset", PresetRequest{Preset: string(preset.Social)})
	require.Equal(t, http.StatusOK, code)
	var opts options.Options
	require.NoError(t, json.Unmarshal(env.Data, &opts))
	assert.Equal(t, preset.Social, opts.PresetID)

	quality := 55
	code, env = s.do(t, http.MethodPatch, "/api/options", OptionsPatch{Quality: &quality})
	require.Equal(t, http.StatusOK, code)
	var patched options.Options
	require.NoError(t, json.Unmarshal(env.Data, &patched))
	assert.Equal(t, 55, patched.Quality)
	assert.Equal(t, opts.MaxWidth, patched.MaxWidth)
	assert.Empty(t, patched.PresetID)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.NotContains(t, raw, "preset_id")

	code, env = s.do(t, http.MethodGet, "/api/options", nil)
	require.Equal(t, http.StatusOK, code)
	var current options.Options
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, patched, current)

	code, _ = s.do(t, http.MethodPost, "/api/options/preset", PresetRequest{Preset: "poster"})
	assert.Equal(t, http.StatusBadRequest, code)

	bad := 0
	code, _ = s.do(t, http.MethodPatch, "/api/options", OptionsPatch{Quality: &bad})
	assert.Equal(t, http.StatusBadRequest, code)
}

// TestAddJobsReportsDuplicates verifies directory expansion and duplicate admission.
func TestAddJobsReportsDuplicates(t *testing.T) {
	s := newTestServer(t)
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"), 20, 10)
	writePNG(t, filepath.Join(src, "b.png"), 20, 10)
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.txt"), []byte("x"), 0o644))

	code, env := s.do(t, http.MethodPost, "/api/jobs", AddJobsRequest{Paths: []string{src}})
	require.Equal(t, http.StatusOK, code)
	var added AddJobsResult
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.Len(t, added.Added, 2)

	code, env = s.do(t, http.MethodPost, "/api/jobs", AddJobsRequest{Paths: []string{filepath.Join(src, "a.png")}})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.Empty(t, added.Added)
	assert.Len(t, added.Duplicates, 1)
	assert.Equal(t, 2, s.session.Registry.Len())
}

// TestCompressBatchRequiresOutputDirectory verifies nothing starts without an output directory.
func TestCompressBatchRequiresOutputDirectory(t *testing.T) {
	s := newTestServer(t)
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"), 20, 10)
	s.do(t, http.MethodPost, "/api/jobs", AddJobsRequest{Paths: []string{src}})

	code, _ := s.do(t, http.MethodPost, "/api/compress", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	for _, job := range s.session.Registry.Snapshot() {
		assert.Equal(t, jobs.StatusPending, job.Status)
	}
}

// TestCompressBatchEndToEnd verifies a batch runs to done and previews are served.
func TestCompressBatchEndToEnd(t *testing.T) {
	s := newTestServer(t)
	src := t.TempDir()
	out := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"), 40, 20)
	writePNG(t, filepath.Join(src, "b.png"), 40, 20)
	s.do(t, http.MethodPost, "/api/jobs", AddJobsRequest{Paths: []string{src}})

	code, _ := s.do(t, http.MethodPut, "/api/output-directory", OutputDirectoryRequest{Path: out})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/compress", CompressRequest{})
	require.Equal(t, http.StatusAccepted, code)

	require.Eventually(t, func() bool {
		for _, job := range s.session.Registry.Snapshot() {
			if job.Status != jobs.StatusDone {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)

	job := s.session.Registry.Snapshot()[0]
	assert.FileExists(t, job.OutputPath)
	assert.True(t, job.HasPreview)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/preview", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, job.CompressedSize, int64(rec.Body.Len()))

	code, _ = s.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/compress", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env := s.do(t, http.MethodPost, "/api/jobs/reset", nil)
	require.Equal(t, http.StatusOK, code)
	var reset map[string]int
	require.NoError(t, json.Unmarshal(env.Data, &reset))
	assert.Equal(t, 2, reset["reset"])
}

// TestRemoveJob verifies removal and the not-found mapping.
func TestRemoveJob(t *testing.T) {
	s := newTestServer(t)
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"), 20, 10)
	s.do(t, http.MethodPost, "/api/jobs", AddJobsRequest{Paths: []string{src}})
	id := s.session.Registry.Snapshot()[0].ID

	code, _ := s.do(t, http.MethodDelete, "/api/jobs/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/jobs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodGet, "/api/jobs/"+id+"/preview", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// TestCompressRefusedAfterStop verifies no background work starts once the server is stopping.
func TestCompressRefusedAfterStop(t *testing.T) {
	s := newTestServer(t)
	src := t.TempDir()
	out := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"), 20, 10)
	s.do(t, http.MethodPost, "/api/jobs", AddJobsRequest{Paths: []string{src}})
	code, _ := s.do(t, http.MethodPut, "/api/output-directory", OutputDirectoryRequest{Path: out})
	require.Equal(t, http.StatusOK, code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	code, _ = s.do(t, http.MethodPost, "/api/compress", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	id := s.session.Registry.Snapshot()[0].ID
	code, _ = s.do(t, http.MethodPost, "/api/jobs/"+id+"/compress", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	for _, job := range s.session.Registry.Snapshot() {
		assert.Equal(t, jobs.StatusPending, job.Status)
	}
}
