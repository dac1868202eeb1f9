package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"tinyme-go/internal/jobs"
	"tinyme-go/internal/logger"
	"tinyme-go/internal/options"
	"tinyme-go/internal/preset"
	"tinyme-go/internal/statistics"
)

type PresetRequest struct {
	Preset string `json:"preset"`
}

// OptionsPatch carries the fields the user edited; nil fields are untouched.
type OptionsPatch struct {
	Quality             *int    `json:"quality,omitempty"`
	MaxWidth            *int    `json:"max_width,omitempty"`
	MaxHeight           *int    `json:"max_height,omitempty"`
	Format              *string `json:"format,omitempty"`
	MaintainAspectRatio *bool   `json:"maintain_aspect_ratio,omitempty"`
}

type AddJobsRequest struct {
	Paths []string `json:"paths"`
}

type AddJobsResult struct {
	Added      []jobs.Job `json:"added"`
	Duplicates []string   `json:"duplicates,omitempty"`
	Errors     []string   `json:"errors,omitempty"`
}

type CompressRequest struct {
	// IDs to compress; empty means every pending job.
	IDs []string `json:"ids,omitempty"`
}

type OutputDirectoryRequest struct {
	Path string `json:"path"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

func (s *Server) currentState() (options.Options, string) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.opts, s.outputDir
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{Success: true, Data: preset.All()})
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	opts, _ := s.currentState()
	s.writeJSON(w, APIResponse{Success: true, Data: opts})
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req PresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.stateMutex.Lock()
	next, err := options.ApplyPreset(s.opts, preset.ID(req.Preset))
	if err == nil {
		s.opts = next
	}
	s.stateMutex.Unlock()

	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.broadcastWSMessage("options_updated", next)
	s.writeJSON(w, APIResponse{Success: true, Data: next})
}

func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	var patch OptionsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var overrides []options.Override
	if patch.Quality != nil {
		overrides = append(overrides, options.Quality(*patch.Quality))
	}
	if patch.MaxWidth != nil {
		overrides = append(overrides, options.MaxWidth(*patch.MaxWidth))
	}
	if patch.MaxHeight != nil {
		overrides = append(overrides, options.MaxHeight(*patch.MaxHeight))
	}
	if patch.Format != nil {
		overrides = append(overrides, options.WithFormat(options.Format(*patch.Format)))
	}
	if patch.MaintainAspectRatio != nil {
		overrides = append(overrides, options.MaintainAspectRatio(*patch.MaintainAspectRatio))
	}
	if len(overrides) == 0 {
		s.writeError(w, "No option fields given", http.StatusBadRequest)
		return
	}

	s.stateMutex.Lock()
	next, err := options.Resolve(s.opts, "", overrides...)
	if err == nil {
		s.opts = next
	}
	s.stateMutex.Unlock()

	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.broadcastWSMessage("options_updated", next)
	s.writeJSON(w, APIResponse{Success: true, Data: next})
}

func (s *Server) handleGetOutputDirectory(w http.ResponseWriter, r *http.Request) {
	_, dir := s.currentState()
	s.writeJSON(w, APIResponse{Success: true, Data: map[string]string{"path": dir}})
}

func (s *Server) handleSetOutputDirectory(w http.ResponseWriter, r *http.Request) {
	var req OutputDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		s.writeError(w, "Directory does not exist", http.StatusBadRequest)
		return
	}

	s.stateMutex.Lock()
	s.outputDir = abs
	s.stateMutex.Unlock()

	s.writeJSON(w, APIResponse{Success: true, Data: map[string]string{"path": abs}})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	snapshot := s.session.Registry.Snapshot()
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"jobs":       snapshot,
			"statistics": statistics.Compute(snapshot),
		},
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    statistics.Compute(s.session.Registry.Snapshot()),
	})
}

func (s *Server) handleAddJobs(w http.ResponseWriter, r *http.Request) {
	var req AddJobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		s.writeError(w, "At least one path is required", http.StatusBadRequest)
		return
	}

	paths, err := s.files.CollectImages(req.Paths)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := AddJobsResult{Added: []jobs.Job{}}
	for _, path := range paths {
		job, err := s.session.Registry.AdmitFile(s.files, path)
		switch {
		case errors.Is(err, jobs.ErrDuplicateSource):
			result.Duplicates = append(result.Duplicates, path)
		case err != nil:
			logger.WithFile(s.log, path).WithError(err).Warn("File not admitted")
			result.Errors = append(result.Errors, err.Error())
		default:
			result.Added = append(result.Added, job)
		}
	}

	s.log.WithField("added", len(result.Added)).Info("Jobs admitted")
	s.writeJSON(w, APIResponse{Success: true, Data: result})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.session.Registry.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: job})
}

func (s *Server) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Registry.Remove(mux.Vars(r)["id"]); err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Message: "Job removed"})
}

func (s *Server) handleResetJobs(w http.ResponseWriter, r *http.Request) {
	n := s.session.Registry.ResetAll()
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: fmt.Sprintf("%d jobs reset", n),
		Data:    map[string]int{"reset": n},
	})
}

func (s *Server) handleCompressJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	opts, outputDir := s.currentState()
	if outputDir == "" {
		s.writeJobError(w, jobs.ErrNoOutputDirectory)
		return
	}
	job, err := s.session.Registry.Get(id)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	if job.Status != jobs.StatusPending {
		s.writeError(w, fmt.Sprintf("Job is %s", job.Status), http.StatusConflict)
		return
	}

	started := s.runAsync(func(ctx context.Context) {
		if _, err := s.session.Orchestrator.CompressOne(ctx, id, opts, outputDir); err != nil {
			s.log.WithError(err).WithField("job_id", id).Warn("Compression failed")
		}
	})
	if !started {
		s.writeError(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	s.writeStatus(w, http.StatusAccepted, APIResponse{Success: true, Message: "Compression started"})
}

func (s *Server) handleCompressBatch(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	opts, outputDir := s.currentState()
	if outputDir == "" {
		s.writeJobError(w, jobs.ErrNoOutputDirectory)
		return
	}

	ids := req.IDs
	if len(ids) == 0 {
		for _, job := range s.session.Registry.Snapshot() {
			if job.Status == jobs.StatusPending {
				ids = append(ids, job.ID)
			}
		}
	}
	if len(ids) == 0 {
		s.writeError(w, "No pending jobs", http.StatusConflict)
		return
	}

	accepted := s.runAsync(func(ctx context.Context) {
		started := time.Now()
		s.broadcastWSMessage("batch_started", map[string]interface{}{"ids": ids, "options": opts})
		res, err := s.session.Orchestrator.CompressBatch(ctx, ids, opts, outputDir)
		if err != nil {
			s.log.WithError(err).Warn("Batch compression failed")
			s.broadcastWSMessage("batch_error", map[string]interface{}{"error": err.Error()})
			return
		}
		s.log.WithFields(logrus.Fields{
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
			"skipped":   len(res.Skipped),
			"duration":  time.Since(started).String(),
		}).Info("Batch compression finished")
		s.broadcastWSMessage("batch_completed", map[string]interface{}{
			"result":     res,
			"statistics": statistics.Compute(s.session.Registry.Snapshot()),
		})
	})
	if !accepted {
		s.writeError(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	s.writeStatus(w, http.StatusAccepted, APIResponse{
		Success: true,
		Message: "Batch compression started",
		Data:    map[string]int{"requested": len(ids)},
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.session.Registry.Get(id)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	data, ok := s.session.Registry.Preview(id)
	if !ok {
		s.writeError(w, "No preview available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType(job.OutputPath))
	w.Write(data)
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Security check - prevent directory traversal
	path = filepath.Clean(path)
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	directories := []DirectoryInfo{}
	for _, entry := range entries {
		if !entry.IsDir() && !s.files.Supported(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		directories = append(directories, DirectoryInfo{
			Path:         filepath.Join(path, entry.Name()),
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{Success: true, Data: directories})
}

func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		s.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, jobs.ErrInvalidTransition):
		s.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, jobs.ErrNoOutputDirectory):
		s.writeError(w, "Output directory is not set", http.StatusBadRequest)
	default:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
