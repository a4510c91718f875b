// Package server is a development stand-in for the NeuroChat backend. It
// implements the same wire contract the client consumes: bearer-token auth,
// session CRUD, message history, and a message exchange answered by a canned
// responder instead of a model.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var errSessionNotFound = errors.New("session not found")

// Settings controls the embedded HTTP server.
type Settings struct {
	Addr   string
	DBPath string
}

// Server owns the HTTP handlers and the SQLite store.
type Server struct {
	settings  Settings
	store     *Store
	responder Responder
	mux       *http.ServeMux
	server    *http.Server
}

func NewServer(settings Settings, responder Responder) (*Server, error) {
	if settings.Addr == "" {
		settings.Addr = ":8000"
	}
	if settings.DBPath == "" {
		settings.DBPath = "neurochat-dev.db"
	}
	if responder == nil {
		responder = EchoResponder{}
	}
	store, err := NewStore(settings.DBPath)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		settings:  settings,
		store:     store,
		responder: responder,
		mux:       http.NewServeMux(),
	}
	srv.registerHandlers()
	srv.server = &http.Server{
		Addr:              settings.Addr,
		Handler:           srv.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv, nil
}

// Handler exposes the mux for httptest-based tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	eg := errgroup.Group{}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-srvCtx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		if err := s.store.Close(); err != nil {
			log.Error().Err(err).Msg("store close error")
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		defer srvCancel()
		log.Info().Str("addr", s.settings.Addr).Str("db", s.settings.DBPath).Msg("starting neurochat dev server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}
