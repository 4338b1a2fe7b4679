// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/quickpoll/cliparse"
	"github.com/danielhkuo/quickpoll/engine"
	"github.com/danielhkuo/quickpoll/middleware"
	"github.com/danielhkuo/quickpoll/models"
)

type PollHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewPollHandler(eng *engine.Engine, cfg cliparse.Config) *PollHandler {
	return &PollHandler{engine: eng, cfg: cfg}
}

// CreatePoll handles POST /api/create_poll
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Admit(r.Context(), middleware.GetClientIP(r, h.cfg.TrustedProxies), models.ActionCreatePoll); err != nil {
		writeError(w, err)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, engine.MethodNotAllowed())
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseLimitedJSONBody(w, r, &req, createBodyLimit(h.cfg.MaxImageSize)); err != nil {
		writeBodyError(w, err)
		return
	}

	pollID, err := h.engine.CreatePoll(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		Success: true,
		PollID:  pollID,
		Message: "Poll created successfully",
	})
}

// ListPolls handles GET /api/get_all_polls?page=&per_page=
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, engine.MethodNotAllowed())
		return
	}

	// Unparseable values read as 0 and are clamped by the engine
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	perPage := engine.DefaultPerPage
	if query.Has("per_page") {
		perPage, _ = strconv.Atoi(query.Get("per_page"))
	}

	resp, err := h.engine.ListPolls(r.Context(), page, perPage, middleware.BaseURL(r, h.cfg.BaseURL))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// createBodyLimit fits MaxOptions base64 images of maxImageSize bytes plus
// the surrounding JSON
func createBodyLimit(maxImageSize int64) int64 {
	return int64(engine.MaxOptions)*maxImageSize*4/3 + 64<<10
}

// writeBodyError answers a request whose JSON body could not be read
func writeBodyError(w http.ResponseWriter, err error) {
	if middleware.IsBodyTooLarge(err) {
		middleware.FailureResponse(w, http.StatusRequestEntityTooLarge, "Request body too large", false)
		return
	}
	middleware.FailureResponse(w, http.StatusBadRequest, "Invalid request body", false)
}

// writeError turns an engine error into a failure response. Anything that
// is not an *engine.Error is treated as internal.
func writeError(w http.ResponseWriter, err error) {
	var e *engine.Error
	if !errors.As(err, &e) {
		slog.Error("unhandled error", "error", err)
		middleware.FailureResponse(w, http.StatusInternalServerError, "Request failed. Please try again.", false)
		return
	}

	if e.Kind == engine.KindInternal {
		slog.Error("request failed", "message", e.Message, "error", e.Err)
	}
	middleware.FailureResponse(w, e.Kind.Status(), e.Message, e.RequiresPassword)
}
