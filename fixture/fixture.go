// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fixture serves a minimal stand-in for the Neon Defense web game.
// It has the title, idle screen, speed controls, build menu, map canvas and
// tower inspector that the built-in scenarios look for.
package fixture

import (
	_ "embed"
	"net/http"
	"sync"
)

//go:embed neon.html
var page []byte

// Server is an http.Handler for the fixture.
//
//	/         the game
//	/broken/  the game with an inspector that never opens
//	/hang     a page that never answers, until Close
type Server struct {
	mux  *http.ServeMux
	hang chan struct{}
	once sync.Once
}

// New returns a fixture server.
func New() *Server {
	s := &Server{
		mux:  http.NewServeMux(),
		hang: make(chan struct{}),
	}
	s.mux.HandleFunc("GET /{$}", s.servePage)
	s.mux.HandleFunc("GET /broken/", s.servePage)
	s.mux.HandleFunc("GET /hang", s.serveHang)
	s.mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(page)
}

func (s *Server) serveHang(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-s.hang:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	}
}

// Close releases pending /hang requests.
func (s *Server) Close() {
	s.once.Do(func() { close(s.hang) })
}
