// Copyright (c) 2025 BVK Chaitanya

// Package server exposes the simulator state over a small read-only JSON
// api. Nothing served here mutates the engine or the ledger.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/bvk/tradesim/syncmap"
)

type Server struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	wg sync.WaitGroup

	handlerMap syncmap.Map[string, http.Handler]

	server *http.Server
}

func New() *Server {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Server{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) Close() error {
	s.cancel(os.ErrClosed)
	if s.server != nil {
		s.server.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) AddHandler(pattern string, h http.Handler) {
	s.handlerMap.Store(pattern, h)
}

func (s *Server) RemoveHandler(pattern string) {
	s.handlerMap.Delete(pattern)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handlerMap.Load(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.ServeHTTP(w, r)
}

// Start listens on the given TCP address and serves in the background till
// Close is called.
func (s *Server) Start(ctx context.Context, addr *net.TCPAddr) error {
	if s.server != nil {
		return os.ErrExist
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler: s,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status api server has failed", "addr", addr, "err", err)
		}
	}()

	slog.Info("started the status api server", "addr", addr)
	return nil
}
