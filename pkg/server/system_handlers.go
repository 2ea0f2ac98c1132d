package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfroyo/typist/pkg/stores"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// handleHealth reports server and store health.
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.startTime),
		Sessions: s.sessions.Len(),
	}

	status := http.StatusOK
	if s.store != nil {
		resp.Store = "ok"
		if err := s.store.HealthCheck(c.Request.Context()); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, ApiResponse{
		Status: StatusSuccess,
		Data:   resp,
	})
}

// handleListRuns lists recorded runs, most recent first.
func (s *Server) handleListRuns(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	runs, err := s.store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: StatusSuccess,
		Data:   RunListResponse{Runs: runs, Total: len(runs), Limit: limit, Offset: offset},
	})
}

// handleGetRun returns one recorded run.
func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: StatusSuccess,
		Data:   run,
	})
}

// handleGetRunEvents returns the event log of a recorded run. ?type= and
// ?level= filter it.
func (s *Server) handleGetRunEvents(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	runID := c.Param("id")
	var eventType *string
	if v := c.Query("type"); v != "" {
		eventType = &v
	}
	var level *stores.EventLevel
	if v := c.Query("level"); v != "" {
		l := stores.EventLevel(v)
		level = &l
	}

	events, err := s.store.GetEvents(c.Request.Context(), &runID, eventType, level, limit, offset)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: StatusSuccess,
		Data:   events,
	})
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, stores.ErrNotFound) {
		c.JSON(http.StatusNotFound, ApiResponse{
			Status: StatusError,
			Error:  err.Error(),
		})
		return
	}
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Store query failed")
	c.JSON(http.StatusInternalServerError, ApiResponse{
		Status: StatusError,
		Error:  "history store unavailable",
	})
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultPageSize, 0
	var err error
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 || limit > maxPageSize {
			badPagination(c, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
			return 0, 0, false
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			badPagination(c, "offset must be a non-negative integer")
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func badPagination(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ApiResponse{
		Status: StatusError,
		Error:  msg,
	})
}
