package server

import (
	"time"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/policy"
	"github.com/openfroyo/typist/pkg/stores"
)

// ApiResponse wraps every JSON response.
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SessionInfo describes a session and its latest snapshot.
type SessionInfo struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Status    engine.RunStatus `json:"status"`
	RunID     string           `json:"run_id,omitempty"`
	Passes    int              `json:"passes"`
	Restarts  int              `json:"restarts"`
	Paused    bool             `json:"paused"`
	Loop      bool             `json:"loop"`
	Disabled  bool             `json:"disabled"`
	Cursor    string           `json:"cursor,omitempty"`
	Frames    int64            `json:"frames"`
	Error     string           `json:"error,omitempty"`
	Lines     engine.Lines     `json:"lines"`
	Text      string           `json:"text"`
	CreatedAt time.Time        `json:"created_at"`
}

// CreateSessionResponse is the body of POST /api/sessions. Lint lists the
// findings below error severity.
type CreateSessionResponse struct {
	SessionInfo
	Lint []policy.Violation `json:"lint,omitempty"`
}

// SessionListResponse is the body of GET /api/sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// Frame is one snapshot pushed over the session stream.
type Frame struct {
	Lines engine.Lines `json:"lines"`
	Text  string       `json:"text"`
}

// PropsPatch is the body of PATCH /api/sessions/:id/props. Absent fields keep
// their current value.
type PropsPatch struct {
	TypingDelay    *config.Duration `json:"typing_delay,omitempty"`
	BackspaceDelay *config.Duration `json:"backspace_delay,omitempty"`
	Loop           *bool            `json:"loop,omitempty"`
	Paused         *bool            `json:"paused,omitempty"`
	Splitter       *string          `json:"splitter,omitempty" binding:"omitempty,oneof=codepoint grapheme word"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version"`
	Uptime   time.Duration `json:"uptime"`
	Sessions int           `json:"sessions"`
	Store    string        `json:"store,omitempty"`
}

// RunListResponse is the body of GET /api/runs.
type RunListResponse struct {
	Runs   []*stores.Run `json:"runs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
