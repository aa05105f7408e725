package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/common"
	"github.com/ternarybob/blogpipeline/internal/models"
)

// writeHandler implements POST /write: a synchronous pipeline run that
// blocks for the job's full duration and returns the finished article
// (spec.md §6).
func (s *Server) writeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	config, ok := s.decodeJobConfig(w, r)
	if !ok {
		return
	}

	job, err := s.app.Jobs.RunSync(r.Context(), config)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// writeAsyncHandler implements POST /write-async: submits a job and
// returns immediately with its polling URL (spec.md §6).
func (s *Server) writeAsyncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	config, ok := s.decodeJobConfig(w, r)
	if !ok {
		return
	}

	job, err := s.app.Jobs.Submit(r.Context(), config)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":      job.ID,
		"status":      string(job.Status),
		"polling_url": "/jobs/" + job.ID + "/status",
	})
}

func (s *Server) decodeJobConfig(w http.ResponseWriter, r *http.Request) (models.JobConfig, bool) {
	var config models.JobConfig
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return config, false
	}
	return config, true
}

// jobStatusHandler implements GET /jobs/{id}/status (spec.md §6).
func (s *Server) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := jobIDFromPath(r.URL.Path, "/status")
	job, err := s.app.Jobs.Get(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// cancelJobHandler implements POST /jobs/{id}/cancel (spec.md §6).
func (s *Server) cancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := jobIDFromPath(r.URL.Path, "/cancel")
	ok := s.app.Jobs.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "cancelled": ok})
}

// listJobsHandler implements GET /jobs?status=&limit=&offset= (spec.md §6).
func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := models.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !validJobStatus(status) {
		writeJSONError(w, http.StatusBadRequest, "unknown status filter: "+string(status))
		return
	}

	jobs, err := s.app.Jobs.List(r.Context(), status)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), len(jobs))
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	jobs = paginate(jobs, offset, limit)

	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
}

func validJobStatus(status models.JobStatus) bool {
	switch status {
	case models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted,
		models.JobStatusFailed, models.JobStatusCancelled, models.JobStatusTimeout:
		return true
	default:
		return false
	}
}

func paginate(jobs []*models.Job, offset, limit int) []*models.Job {
	if offset >= len(jobs) {
		return []*models.Job{}
	}
	end := offset + limit
	if end > len(jobs) {
		end = len(jobs)
	}
	return jobs[offset:end]
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// jobStatsHandler implements GET /jobs/stats (spec.md §6).
func (s *Server) jobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Jobs.CurrentStats())
}

// jobErrorsHandler implements GET /jobs/errors: the most recent failed
// or timed-out jobs with their error messages (spec.md §6).
func (s *Server) jobErrorsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failed, err := s.app.Jobs.List(r.Context(), models.JobStatusFailed)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	timedOut, err := s.app.Jobs.List(r.Context(), models.JobStatusTimeout)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	errors := append(failed, timedOut...)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": errors, "total": len(errors)})
}

// healthHandler implements GET /health (spec.md §6).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// versionHandler returns build/version metadata.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not found: "+r.URL.Path)
}

func jobIDFromPath(path, suffix string) string {
	trimmed := strings.TrimPrefix(path, "/jobs/")
	return strings.TrimSuffix(trimmed, suffix)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
