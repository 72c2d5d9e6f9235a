package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/VickramC07/BikeGuard/internal/stream"
)

func (s *Server) handleIndex(c *gin.Context) {
	content, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "viewer page missing"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", content)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	stream.ServeWebSocket(s.deps.Sink.Hub(), s.deps.WS, c.Writer, c.Request)
}

func (s *Server) handleMJPEG(c *gin.Context) {
	stream.ServeMJPEG(s.deps.Sink.Hub(), c.Writer, c.Request)
}

// handleSnapshot returns the most recently encoded frame
func (s *Server) handleSnapshot(c *gin.Context) {
	latest := s.deps.Sink.Latest()
	if latest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame encoded yet"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Frame-Seq", strconv.FormatUint(latest.Seq, 10))
	c.Data(http.StatusOK, "image/jpeg", latest.JPEG)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pipeline":       s.deps.Loop.Stats(),
		"subscribers":    s.deps.Sink.Hub().Count(),
		"encoded_frames": s.deps.Sink.Encoded(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":    "bikeguard",
		"version":    s.version,
		"state":      s.deps.Loop.State().String(),
		"started_at": s.startTime,
		"uptime":     time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.deps.Health.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(c *gin.Context) {
	report := s.deps.Health.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    report.Status,
		"timestamp": report.Timestamp,
		"ready":     report.Ready(),
	})
}
