// -----------------------------------------------------------------------
// Last Modified: Thursday, 9th October 2025 8:53:55 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import "net/http"

// setupRoutes configures every HTTP route the pipeline exposes (spec.md
// §6 external interfaces).
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/write", s.writeHandler)
	mux.HandleFunc("/write-async", s.writeAsyncHandler)
	mux.HandleFunc("/jobs", s.listJobsHandler)
	mux.HandleFunc("/jobs/stats", s.jobStatsHandler)
	mux.HandleFunc("/jobs/errors", s.jobErrorsHandler)
	mux.HandleFunc("/jobs/", s.handleJobItemRoutes) // /jobs/{id}/status, /jobs/{id}/cancel
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/version", s.versionHandler)
	mux.HandleFunc("/shutdown", s.ShutdownHandler) // dev mode graceful shutdown

	mux.HandleFunc("/", s.notFoundHandler)

	return mux
}

// handleJobItemRoutes dispatches /jobs/{id}/status and /jobs/{id}/cancel,
// the only two sub-resources a single job exposes (spec.md §6).
func (s *Server) handleJobItemRoutes(w http.ResponseWriter, r *http.Request) {
	matched := RouteByPathSuffix(w, r, "/jobs/", []PathSuffixRouter{
		{Suffix: "/status", Handler: s.jobStatusHandler},
		{Suffix: "/cancel", Handler: s.cancelJobHandler},
	})
	if !matched {
		s.notFoundHandler(w, r)
	}
}
