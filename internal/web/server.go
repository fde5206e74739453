// Package web serves finished clips over HTTP with byte-range support and
// short-alias redirects, so chat platforms can play them inline.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/OdielDomanie/clipper-bot/internal/config"
	"github.com/OdielDomanie/clipper-bot/internal/kvstore"
)

// clipMIME maps the clip extensions the cutter produces. Anything else is
// not served.
var clipMIME = map[string]string{
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".webm": "video/webm",
	".ogg":  "audio/ogg",
	".png":  "image/png",
}

// Server serves /clips and mints the public links for them.
type Server struct {
	cfg     config.ServerConfig
	clipDir string
	store   *kvstore.Store
	logger  *slog.Logger

	favicon    string
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer builds the clip server over the given clip directory and alias
// store.
func NewServer(cfg config.ServerConfig, clipDir string, store *kvstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		clipDir: clipDir,
		store:   store,
		logger:  logger,
		favicon: "favicon.ico",
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Get("/clips/{name}", s.handleClip)
	router.Get("/favicon.ico", s.handleFavicon)
	s.router = router
	return s
}

// WithFavicon overrides the favicon file location.
func (s *Server) WithFavicon(path string) *Server {
	s.favicon = path
	return s
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleClip resolves an alias to a 302 or serves a real clip file with
// byte-range support.
func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}

	if s.store != nil {
		target, err := s.store.Redirect(name)
		switch {
		case err == nil:
			http.Redirect(w, r, "/clips/"+target, http.StatusFound)
			return
		case !errors.Is(err, kvstore.ErrNotFound):
			s.logger.Error("resolving alias", slog.String("alias", name), slog.Any("error", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	mime, ok := clipMIME[strings.ToLower(filepath.Ext(name))]
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(s.clipDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.favicon)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, "favicon.ico", fi.ModTime(), f)
}

// GetLink mints (or reuses) the public short link for a clip file. Aliases
// are six random digits and persist across restarts.
func (s *Server) GetLink(clipPath string) (string, error) {
	target := filepath.Base(clipPath)

	alias, err := s.store.AliasOf(target)
	if errors.Is(err, kvstore.ErrNotFound) {
		alias, err = s.newAlias(target)
	}
	if err != nil {
		return "", err
	}
	return s.baseURL() + "/clips/" + alias, nil
}

func (s *Server) newAlias(target string) (string, error) {
	for range 100 {
		alias := fmt.Sprintf("clip_%06d", rand.IntN(1_000_000))
		if _, err := s.store.Redirect(alias); err == nil {
			continue
		} else if !errors.Is(err, kvstore.ErrNotFound) {
			return "", err
		}
		if err := s.store.SetRedirect(alias, target); err != nil {
			return "", err
		}
		return alias, nil
	}
	return "", errors.New("web: alias space exhausted")
}

func (s *Server) baseURL() string {
	host := s.cfg.LinkHost
	if host == "" {
		host = s.cfg.Host
	}
	if s.cfg.LinkPort != 0 && s.cfg.LinkPort != 80 {
		return fmt.Sprintf("http://%s:%d", host, s.cfg.LinkPort)
	}
	return "http://" + host
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting clip server", slog.String("address", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	s.logger.Info("clip server stopped")
	return nil
}
