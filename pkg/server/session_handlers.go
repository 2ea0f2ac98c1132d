package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/policy"
	"github.com/openfroyo/typist/pkg/render"
)

// handleListSessions lists every session.
func (s *Server) handleListSessions(c *gin.Context) {
	sessions := s.sessions.List()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: StatusSuccess,
		Data:   SessionListResponse{Sessions: infos, Total: len(infos)},
	})
}

// handleCreateSession parses the posted script and starts animating it. The
// body is a script document in JSON unless ?format= or the Content-Type
// says otherwise.
func (s *Server) handleCreateSession(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: StatusError,
			Error:  "request body must contain a script",
		})
		return
	}

	parsed, err := s.parser.Parse(c.Request.Context(), requestFormat(c), "request", data)
	if err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: StatusError,
			Error:  err.Error(),
		})
		return
	}
	if err := parsed.Err(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ApiResponse{
			Status: StatusError,
			Error:  err.Error(),
			Data:   parsed.Errors,
		})
		return
	}

	script := parsed.Script
	s.cfg.ApplyDefaults(script)

	var findings []policy.Violation
	if s.lint != nil {
		result, err := s.lint.EvaluateScript(c.Request.Context(), script)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, ApiResponse{
				Status: StatusError,
				Error:  err.Error(),
			})
			return
		}
		if !result.Allowed {
			c.JSON(http.StatusUnprocessableEntity, ApiResponse{
				Status: StatusError,
				Error:  "script failed lint",
				Data:   result.Violations,
			})
			return
		}
		findings = result.Violations
	}

	sess, err := s.sessions.Create(script)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ApiResponse{
			Status: StatusError,
			Error:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, ApiResponse{
		Status:  StatusSuccess,
		Message: "session started",
		Data:    CreateSessionResponse{SessionInfo: sess.Info(), Lint: findings},
	})
}

func requestFormat(c *gin.Context) string {
	if format := c.Query("format"); format != "" {
		return format
	}
	ct := c.ContentType()
	switch {
	case strings.Contains(ct, "yaml"):
		return config.FormatYAML
	case strings.Contains(ct, "cue"):
		return config.FormatCUE
	case strings.Contains(ct, "starlark"):
		return config.FormatStarlark
	}
	return config.FormatJSON
}

// handleGetSession returns one session.
func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: StatusSuccess,
		Data:   sess.Info(),
	})
}

// handleDeleteSession discards a session.
func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.sessions.Delete(id) {
		c.JSON(http.StatusNotFound, ApiResponse{
			Status: StatusError,
			Error:  "session " + id + " not found",
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status:  StatusSuccess,
		Message: "session deleted",
	})
}

// handlePause pauses a session.
func (s *Server) handlePause(c *gin.Context) {
	s.control(c, "session paused", func(sess *Session) error {
		return sess.SetPaused(true)
	})
}

// handleResume resumes a paused session.
func (s *Server) handleResume(c *gin.Context) {
	s.control(c, "session resumed", func(sess *Session) error {
		return sess.SetPaused(false)
	})
}

// handleRestart animates a session from scratch.
func (s *Server) handleRestart(c *gin.Context) {
	s.control(c, "session restarted", (*Session).Restart)
}

// handleUpdateProps reconfigures a running session.
func (s *Server) handleUpdateProps(c *gin.Context) {
	var patch PropsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: StatusError,
			Error:  "invalid props: " + err.Error(),
		})
		return
	}
	s.control(c, "props updated", func(sess *Session) error {
		return sess.UpdateProps(patch)
	})
}

func (s *Server) control(c *gin.Context, message string, fn func(*Session) error) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrSessionDisabled) {
			status = http.StatusConflict
		}
		c.JSON(status, ApiResponse{
			Status: StatusError,
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status:  StatusSuccess,
		Message: message,
		Data:    sess.Info(),
	})
}

// handleStream pushes every snapshot of a session as server-sent events. The
// current snapshot is sent first. The stream ends when the client goes away
// or the session is deleted.
func (s *Server) handleStream(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	frames, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	send := func(event string, data any) {
		c.SSEvent(event, data)
		c.Writer.Flush()
	}
	send("lines", newFrame(sess.Lines()))

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case lines, ok := <-frames:
			if !ok {
				send("closed", sess.ID)
				return
			}
			send("lines", newFrame(lines))
		case <-heartbeat.C:
			send("status", sess.Info().Status)
		}
	}
}

func newFrame(lines engine.Lines) Frame {
	return Frame{Lines: lines, Text: render.Text(lines, 0)}
}

func (s *Server) lookup(c *gin.Context) (*Session, bool) {
	id := c.Param("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ApiResponse{
			Status: StatusError,
			Error:  "session " + id + " not found",
		})
	}
	return sess, ok
}
