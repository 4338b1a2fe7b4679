// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/quickpoll/auth"
	"github.com/danielhkuo/quickpoll/blob"
	"github.com/danielhkuo/quickpoll/cliparse"
	"github.com/danielhkuo/quickpoll/models"
	"github.com/danielhkuo/quickpoll/ratelimit"
	"github.com/danielhkuo/quickpoll/store"
)

// Poll creation limits
const (
	MaxTitleLength = 255
	MinOptions     = 2
	MaxOptions     = 20

	DefaultExpirationType  = models.ExpirationDays
	DefaultExpirationValue = 7
)

// Listing page sizes
const (
	DefaultPerPage = 10
	MinPerPage     = 5
	MaxPerPage     = 20
)

// Engine runs every poll operation: admission, creation, reads with lazy
// expiry, and voting.
type Engine struct {
	store    *store.Store
	limiter  *ratelimit.Limiter
	signer   *auth.TokenSigner
	images   *blob.Store
	resolver *Resolver
	cfg      cliparse.Config
}

func New(st *store.Store, limiter *ratelimit.Limiter, signer *auth.TokenSigner, images *blob.Store, cfg cliparse.Config) *Engine {
	return &Engine{
		store:    st,
		limiter:  limiter,
		signer:   signer,
		images:   images,
		resolver: NewResolver(st),
		cfg:      cfg,
	}
}

// Resolver exposes the expiry resolver, shared with the sweeper
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Admit applies the per-IP rate limit for an action. It runs before any
// other check, including the HTTP method.
func (e *Engine) Admit(ctx context.Context, ip, action string) error {
	var limit int
	var window time.Duration
	switch action {
	case models.ActionCreatePoll:
		limit, window = e.cfg.MaxPollsPerHour, time.Hour
	case models.ActionVote:
		limit, window = e.cfg.MaxVotesPerMinute, time.Minute
	default:
		return nil
	}

	d := e.limiter.Check(ctx, ip, action, limit, window)
	if !d.Allowed {
		return &Error{Kind: KindRateLimited, Message: d.Message}
	}
	return nil
}

// CreatePoll validates the request, stores option images and inserts the
// poll. Images that fail validation are dropped and the option is kept
// without one.
func (e *Engine) CreatePoll(ctx context.Context, req models.CreatePollRequest) (string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "", validationError("Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", validationError("Title is too long")
	}

	if len(req.Options) > MaxOptions {
		return "", validationError("Maximum 20 options allowed")
	}
	var texts []models.OptionInput
	for _, opt := range req.Options {
		text := strings.TrimSpace(opt.Text)
		if text == "" {
			continue
		}
		texts = append(texts, models.OptionInput{Text: text, Image: opt.Image})
	}
	if len(texts) < MinOptions {
		return "", validationError("At least 2 options are required")
	}

	expirationType := req.ExpirationType
	if expirationType == "" {
		expirationType = DefaultExpirationType
	}
	expirationValue := DefaultExpirationValue
	if req.ExpirationValue != nil {
		expirationValue = *req.ExpirationValue
	}
	switch expirationType {
	case models.ExpirationHours:
		if expirationValue < 1 || expirationValue > 24 {
			return "", validationError("Hours must be between 1 and 24")
		}
	case models.ExpirationDays:
		if expirationValue < 1 || expirationValue > 30 {
			return "", validationError("Days must be between 1 and 30")
		}
	default:
		return "", validationError("Expiration type must be hours or days")
	}

	var passwordHash *string
	if strings.TrimSpace(req.Password) != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return "", internal("Failed to create poll", err)
		}
		passwordHash = &hash
	}

	var saved []string
	newPoll := store.NewPoll{
		Title:           title,
		PasswordHash:    passwordHash,
		ExpirationType:  expirationType,
		ExpirationValue: expirationValue,
	}
	for _, opt := range texts {
		option := store.NewOption{Text: opt.Text}
		if opt.Image != "" {
			path, err := e.images.Save(opt.Image)
			if err != nil {
				slog.Warn("dropping option image", "error", err)
			} else {
				saved = append(saved, path)
				option.ImagePath = &path
			}
		}
		newPoll.Options = append(newPoll.Options, option)
	}

	uniqueID, err := e.store.CreatePoll(ctx, newPoll)
	if err != nil {
		e.deleteImages(saved)
		return "", internal("Failed to create poll", err)
	}

	slog.Info("poll created",
		"poll_id", uniqueID,
		"options", len(newPoll.Options),
		"images", len(saved),
		"expiration", expirationType,
		"value", expirationValue,
		"password", passwordHash != nil,
	)
	return uniqueID, nil
}

func (e *Engine) deleteImages(paths []string) {
	for _, p := range paths {
		if err := e.images.Delete(p); err != nil {
			slog.Error("failed to delete image", "path", p, "error", err)
		}
	}
}

// ListPolls returns one page of active polls, each with a direct link and a
// freshly signed view-only link. perPage is clamped to [MinPerPage, MaxPerPage];
// callers apply DefaultPerPage when the client sent none.
func (e *Engine) ListPolls(ctx context.Context, page, perPage int, baseURL string) (models.ListPollsResponse, error) {
	if page < 1 {
		page = 1
	}
	perPage = min(MaxPerPage, max(MinPerPage, perPage))

	total, err := e.store.CountActivePolls(ctx)
	if err != nil {
		return models.ListPollsResponse{}, internal("Failed to load polls", err)
	}

	listings, err := e.store.ListActivePolls(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return models.ListPollsResponse{}, internal("Failed to load polls", err)
	}

	polls := make([]models.PollSummary, 0, len(listings))
	for _, l := range listings {
		pollURL := strings.TrimRight(baseURL, "/") + "/poll/" + l.UniqueID
		polls = append(polls, models.PollSummary{
			UniqueID:        l.UniqueID,
			Title:           l.Title,
			CreatedAt:       l.CreatedAt,
			ExpiresAt:       l.ExpiresAt,
			ExpirationType:  l.ExpirationType,
			ExpirationValue: l.ExpirationValue,
			TotalVotes:      l.TotalVotes,
			OptionCount:     l.OptionCount,
			HasPassword:     l.HasPassword(),
			PollURL:         pollURL,
			PollURLView:     pollURL + "?view_token=" + url.QueryEscape(e.signer.Issue(l.UniqueID)),
		})
	}

	return models.ListPollsResponse{
		Success:    true,
		Polls:      polls,
		Count:      len(polls),
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// GetPollInput carries a read request
type GetPollInput struct {
	UniqueID  string
	ViewToken string
	Password  string
	IP        string
	BaseURL   string
}

// GetPoll applies the access rules, resolves expiry and projects results
func (e *Engine) GetPoll(ctx context.Context, in GetPollInput) (models.GetPollResponse, error) {
	if in.UniqueID == "" {
		return models.GetPollResponse{}, validationError("Poll ID is required")
	}

	poll, err := e.lookup(ctx, in.UniqueID)
	if err != nil {
		return models.GetPollResponse{}, err
	}

	access := e.access(poll, in.ViewToken)
	if access.RequiresPassword {
		if err := checkPassword(poll, in.Password, "view"); err != nil {
			return models.GetPollResponse{}, err
		}
	}

	poll, _, err = e.resolver.Resolve(ctx, poll)
	if err != nil {
		return models.GetPollResponse{}, internal("Failed to load poll", err)
	}

	proj, err := e.resolver.Project(ctx, poll)
	if err != nil {
		return models.GetPollResponse{}, internal("Failed to load poll", err)
	}

	resp := models.GetPollResponse{
		Success:          true,
		Poll:             pollInfo(poll),
		Options:          absoluteImages(proj.Options, in.BaseURL),
		AllOptions:       absoluteImages(proj.AllOptions, in.BaseURL),
		TotalVotes:       proj.TotalVotes,
		IsExpired:        poll.IsExpired,
		IsViewOnly:       access.ViewOnly,
		RequiresPassword: access.RequiresPassword,
	}
	if proj.Winner != nil {
		w := absoluteImages([]models.OptionResult{*proj.Winner}, in.BaseURL)[0]
		resp.Winner = &w
	}

	if !poll.IsExpired {
		optionID, err := e.store.VoteByIP(ctx, poll.ID, in.IP)
		switch {
		case err == nil:
			resp.HasVoted = true
			resp.UserVoteOptionID = &optionID
		case !errors.Is(err, store.ErrNotFound):
			return models.GetPollResponse{}, internal("Failed to load poll", err)
		}
	}

	return resp, nil
}

// VoteInput carries a vote request
type VoteInput struct {
	UniqueID  string
	OptionID  *int64
	ViewToken string
	Password  string
	IP        string
	BaseURL   string
}

// CastVote runs every vote check in order and commits the vote. The checks
// before the commit only produce friendlier errors; the store's unique index
// and guarded increment are what keep the counts right under concurrency.
func (e *Engine) CastVote(ctx context.Context, in VoteInput) (models.VoteResponse, error) {
	if in.UniqueID == "" || in.OptionID == nil {
		return models.VoteResponse{}, validationError("Poll ID and Option ID are required")
	}
	optionID := *in.OptionID

	poll, err := e.lookup(ctx, in.UniqueID)
	if err != nil {
		return models.VoteResponse{}, err
	}

	poll, _, err = e.resolver.Resolve(ctx, poll)
	if err != nil {
		return models.VoteResponse{}, internal("Failed to record vote", err)
	}
	if poll.IsExpired {
		return models.VoteResponse{}, forbidden(MsgPollExpired)
	}

	access := e.access(poll, in.ViewToken)
	if access.ViewOnly {
		if !poll.HasPassword() {
			return models.VoteResponse{}, forbidden(MsgViewOnlyVoting)
		}
		if err := checkPassword(poll, in.Password, "vote on"); err != nil {
			return models.VoteResponse{}, err
		}
	}

	if _, err := e.store.FindOption(ctx, poll.ID, optionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.VoteResponse{}, forbidden(MsgInvalidOption)
		}
		return models.VoteResponse{}, internal("Failed to record vote", err)
	}

	if _, err := e.store.VoteByIP(ctx, poll.ID, in.IP); err == nil {
		return models.VoteResponse{}, forbidden(MsgAlreadyVoted)
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.VoteResponse{}, internal("Failed to record vote", err)
	}

	err = e.store.RecordVote(ctx, poll.ID, optionID, in.IP)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyVoted):
		return models.VoteResponse{}, &Error{Kind: KindConflict, Message: MsgAlreadyVoted, Err: err}
	case errors.Is(err, store.ErrInvalidOption):
		return models.VoteResponse{}, forbidden(MsgInvalidOption)
	case errors.Is(err, store.ErrPollClosed):
		return models.VoteResponse{}, forbidden(MsgPollExpired)
	default:
		return models.VoteResponse{}, internal("Failed to record vote", err)
	}

	slog.Info("vote recorded",
		"poll_id", poll.UniqueID,
		"option_id", optionID,
	)

	options, err := e.store.GetOptions(ctx, poll.ID, store.OrderByID)
	if err != nil {
		return models.VoteResponse{}, internal("Failed to load results", err)
	}
	proj := projectActive(options)

	return models.VoteResponse{
		Success:          true,
		Message:          "Vote recorded successfully",
		Options:          absoluteImages(proj.Options, in.BaseURL),
		TotalVotes:       proj.TotalVotes,
		UserVoteOptionID: optionID,
	}, nil
}

func (e *Engine) lookup(ctx context.Context, uniqueID string) (models.Poll, error) {
	poll, err := e.store.GetPollByUniqueID(ctx, uniqueID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Poll{}, &Error{Kind: KindNotFound, Message: MsgPollNotFound}
	}
	if err != nil {
		return models.Poll{}, internal("Failed to load poll", err)
	}
	return poll, nil
}

func pollInfo(p models.Poll) models.PollInfo {
	return models.PollInfo{
		UniqueID:        p.UniqueID,
		Title:           p.Title,
		CreatedAt:       p.CreatedAt,
		ExpiresAt:       p.ExpiresAt,
		ExpirationType:  p.ExpirationType,
		ExpirationValue: p.ExpirationValue,
		IsExpired:       p.IsExpired,
		WinnerOptionID:  p.WinnerOptionID,
		HasPassword:     p.HasPassword(),
	}
}

// absoluteImages rewrites stored image paths into URLs under baseURL.
// Paths that are already absolute URLs are left alone.
func absoluteImages(options []models.OptionResult, baseURL string) []models.OptionResult {
	if options == nil {
		return nil
	}
	out := make([]models.OptionResult, len(options))
	for i, o := range options {
		if o.ImagePath != nil && *o.ImagePath != "" {
			p := *o.ImagePath
			if !strings.HasPrefix(p, "http://") && !strings.HasPrefix(p, "https://") {
				p = strings.TrimRight(baseURL, "/") + "/" + strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
			}
			o.ImagePath = &p
		}
		out[i] = o
	}
	return out
}
