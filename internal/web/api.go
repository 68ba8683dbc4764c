package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/door-monitor/internal/announce"
	"github.com/sweeney/door-monitor/internal/logic"
)

const (
	errChannelNotFound = "channel not found"
	errLinkFailed      = "failed to send status message"
	errSubscriberParam = "subscriber is required"
	errPageParam       = "page must be a non-negative integer"
	errStart           = "failed to start monitoring"
	errStop            = "failed to stop monitoring"
	errInvalidBodyPref = "invalid body: "
)

type linkRequest struct {
	Subscriber string `json:"subscriber" binding:"required"`
	Channel    string `json:"channel" binding:"required"`
}

// HistoryEntry is one history point as served by /api/history.
type HistoryEntry struct {
	Timestamp int64  `json:"timestamp"`
	IsOpen    bool   `json:"is_open"`
	State     string `json:"state"`
	Time      string `json:"time"`
}

// HistoryResponse is the body of /api/history.
type HistoryResponse struct {
	Entries    []HistoryEntry `json:"entries"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
}

func (s *Server) jsonError(c *gin.Context, code int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		s.log.Warnw(logKey, fields...)
	}
	c.JSON(code, gin.H{"error": userMsg})
}

func (s *Server) handleLink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	err := s.ctl.Link(c.Request.Context(), req.Subscriber, req.Channel)
	switch {
	case errors.Is(err, announce.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errChannelNotFound})
		return
	case err != nil:
		s.jsonError(c, http.StatusBadGateway, errLinkFailed, "link failed", err,
			"subscriber", req.Subscriber, "channel", req.Channel)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "linked",
		"subscriber": req.Subscriber,
		"channel":    req.Channel,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	sub := c.Query("subscriber")
	if sub == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errSubscriberParam})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Health(sub, s.now()).ToJSON())
}

func (s *Server) handleHistory(c *gin.Context) {
	page := 0
	if q := c.Query("page"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errPageParam})
			return
		}
		page = n
	}

	points, total := s.ctl.HistoryPage(page)
	resp := HistoryResponse{
		Entries:    make([]HistoryEntry, 0, len(points)),
		Page:       page,
		TotalPages: total,
	}
	for _, p := range points {
		resp.Entries = append(resp.Entries, HistoryEntry{
			Timestamp: p.Timestamp,
			IsOpen:    p.IsOpen,
			State:     string(logic.StateOf(p.IsOpen)),
			Time:      time.Unix(p.Timestamp, 0).UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.ctl.Start(c.Request.Context()); err != nil {
		s.jsonError(c, http.StatusInternalServerError, errStart, "start failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.ctl.Stop(); err != nil {
		s.jsonError(c, http.StatusInternalServerError, errStop, "stop failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
