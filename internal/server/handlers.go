package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Server is the appvaultd HTTP API.
type Server struct {
	catalog   *Catalog
	staticDir string
	assetsDir string
	logger    *log.Logger
}

// NewServer wires the HTTP API over a catalog and the static/assets
// directories.
func NewServer(catalog *Catalog, staticDir, assetsDir string, logger *log.Logger) *Server {
	return &Server{
		catalog:   catalog,
		staticDir: staticDir,
		assetsDir: assetsDir,
		logger:    logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /latest-version/{app}", s.handleLatestVersion)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /apps", s.handleApps)
	mux.HandleFunc("GET /assets/{filename}", s.handleAsset)
	return s.logRequests(mux)
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "appvault catalog server is running",
	})
}

func (s *Server) handleLatestVersion(w http.ResponseWriter, r *http.Request) {
	app := r.PathValue("app")

	if _, err := s.catalog.AppByName(app); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unknown app: "+app)
			return
		}
		s.internalError(w, "looking up app", err)
		return
	}

	v, err := s.catalog.LatestVersion(app)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no published versions for "+app)
			return
		}
		s.internalError(w, "looking up latest version", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"latest_version": v.String()})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, ok := staticPath(s.staticDir, r.PathValue("filename"))
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	s.serveFile(w, r, path)
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.catalog.ListApps()
	if err != nil {
		s.internalError(w, "listing apps", err)
		return
	}
	if apps == nil {
		apps = []App{}
	}
	writeJSON(w, http.StatusOK, map[string][]App{"apps": apps})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	path, ok := staticPath(s.assetsDir, r.PathValue("filename"))
	if !ok {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	s.serveFile(w, r, path)
}

// serveFile streams a regular file, translating a missing file into
// a JSON 404.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
