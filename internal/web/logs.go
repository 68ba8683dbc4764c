package web

import (
	"bufio"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLines = 10
	maxLogLines     = 500

	errLogsDisabled = "log file not configured"
	errLogsLines    = "lines must be between 1 and 500"
	errLogsRead     = "failed to read log file"
)

func (s *Server) handleLogs(c *gin.Context) {
	if s.logFile == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": errLogsDisabled})
		return
	}

	n := defaultLogLines
	if q := c.Query("lines"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 || v > maxLogLines {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLogsLines})
			return
		}
		n = v
	}

	lines, err := tail(s.logFile, n)
	if err != nil {
		s.jsonError(c, http.StatusInternalServerError, errLogsRead, "read log file", err, "path", s.logFile)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// tail returns the last n lines of path.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
