// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/quickpoll/cliparse"
	"github.com/danielhkuo/quickpoll/engine"
	"github.com/danielhkuo/quickpoll/handlers"
	"github.com/danielhkuo/quickpoll/middleware"
	"github.com/danielhkuo/quickpoll/models"
)

func NewRouter(eng *engine.Engine, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(eng, cfg)
	resultsHandler := handlers.NewResultsHandler(eng, cfg)
	votingHandler := handlers.NewVotingHandler(eng, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.JSONResponse(w, http.StatusOK, models.HealthResponse{Status: "ok"})
	})

	// API endpoints check their own methods so a wrong method gets a JSON 405
	mux.HandleFunc("/api/create_poll", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("/api/get_all_polls", middleware.WithLogging(pollHandler.ListPolls))
	mux.HandleFunc("/api/get_poll", middleware.WithLogging(resultsHandler.GetPoll))
	mux.HandleFunc("/api/vote", middleware.WithLogging(votingHandler.Vote))

	// Uploaded option images
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", noListing(http.FileServer(http.Dir(cfg.UploadDir)))))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickpoll API v1"))
	})

	return mux
}

// noListing hides directory listings from the file server
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
