package models

// Expiration types
const (
	ExpirationHours = "hours"
	ExpirationDays  = "days"
)

// Rate limited actions
const (
	ActionCreatePoll = "create_poll"
	ActionVote       = "vote"
)

// Request types

type OptionInput struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"` // data:image/<type>;base64,...
}

type CreatePollRequest struct {
	Title           string        `json:"title"`
	Options         []OptionInput `json:"options"`
	ExpirationType  string        `json:"expiration_type"`
	ExpirationValue *int          `json:"expiration_value"` // nil means the default
	Password        string        `json:"password"`
}

type VoteRequest struct {
	PollID    string `json:"poll_id"`
	OptionID  *int64 `json:"option_id"`
	ViewToken string `json:"view_token"`
	Password  string `json:"password"`
}

// Response types

type CreatePollResponse struct {
	Success bool   `json:"success"`
	PollID  string `json:"poll_id"`
	Message string `json:"message"`
}

type PollSummary struct {
	UniqueID        string `json:"unique_id"`
	Title           string `json:"title"`
	CreatedAt       int64  `json:"created_at"`
	ExpiresAt       int64  `json:"expires_at"`
	ExpirationType  string `json:"expiration_type"`
	ExpirationValue int    `json:"expiration_value"`
	TotalVotes      int    `json:"total_votes"`
	OptionCount     int    `json:"option_count"`
	HasPassword     bool   `json:"has_password"`
	PollURL         string `json:"poll_url"`
	PollURLView     string `json:"poll_url_view"`
}

type ListPollsResponse struct {
	Success    bool          `json:"success"`
	Polls      []PollSummary `json:"polls"`
	Count      int           `json:"count"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

type GetPollResponse struct {
	Success          bool           `json:"success"`
	Poll             PollInfo       `json:"poll"`
	Options          []OptionResult `json:"options"`
	AllOptions       []OptionResult `json:"all_options,omitempty"`
	Winner           *OptionResult  `json:"winner"`
	TotalVotes       int            `json:"total_votes"`
	HasVoted         bool           `json:"has_voted"`
	UserVoteOptionID *int64         `json:"user_vote_option_id"`
	IsExpired        bool           `json:"is_expired"`
	IsViewOnly       bool           `json:"is_view_only"`
	RequiresPassword bool           `json:"requires_password"`
}

type VoteResponse struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	Options          []OptionResult `json:"options"`
	TotalVotes       int            `json:"total_votes"`
	UserVoteOptionID int64          `json:"user_vote_option_id"`
}

// Domain types

// Poll is a stored poll. Timestamps are Unix seconds from the database clock.
type Poll struct {
	ID              int64   `db:"id"`
	UniqueID        string  `db:"unique_id"`
	Title           string  `db:"title"`
	PasswordHash    *string `db:"password_hash"`
	CreatedAt       int64   `db:"created_at"`
	ExpiresAt       int64   `db:"expires_at"`
	ExpirationType  string  `db:"expiration_type"`
	ExpirationValue int     `db:"expiration_value"`
	IsExpired       bool    `db:"is_expired"`
	WinnerOptionID  *int64  `db:"winner_option_id"`
}

func (p Poll) HasPassword() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

type Option struct {
	ID        int64   `db:"id"`
	PollID    int64   `db:"poll_id"`
	Text      string  `db:"option_text"`
	ImagePath *string `db:"image_path"`
	VoteCount int     `db:"vote_count"`
}

// PollInfo is the public view of a poll; the password hash never leaves the server
type PollInfo struct {
	UniqueID        string `json:"unique_id"`
	Title           string `json:"title"`
	CreatedAt       int64  `json:"created_at"`
	ExpiresAt       int64  `json:"expires_at"`
	ExpirationType  string `json:"expiration_type"`
	ExpirationValue int    `json:"expiration_value"`
	IsExpired       bool   `json:"is_expired"`
	WinnerOptionID  *int64 `json:"winner_option_id"`
	HasPassword     bool   `json:"has_password"`
}

type OptionResult struct {
	ID         int64   `json:"id"`
	Text       string  `json:"option_text"`
	ImagePath  *string `json:"image_path"`
	VoteCount  int     `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}

// Failure response

type ErrorResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	RequiresPassword bool   `json:"requires_password,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
