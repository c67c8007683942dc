package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type rosterReader interface {
	Roster(ctx context.Context, examID uuid.UUID) ([]service.RosterEntry, error)
}

// MonitorHandler serves the proctor's live roster of running attempts.
type MonitorHandler struct {
	monitor rosterReader
	log     zerolog.Logger

	refreshEvery   time.Duration
	keepAliveEvery time.Duration
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitor rosterReader, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor:        monitor,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		refreshEvery:   refreshInterval,
		keepAliveEvery: keepAliveInterval,
	}
}

// Roster godoc
// GET /api/v1/proctor/exams/:exam_id/roster
func (h *MonitorHandler) Roster(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	roster, err := h.monitor.Roster(c.Request.Context(), examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": roster})
}

// RosterStream godoc
// GET /api/v1/proctor/exams/:exam_id/roster/stream
// Streams the roster over SSE, refreshed on an interval.
func (h *MonitorHandler) RosterStream(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	log := h.log.With().Str("exam_id", examID.String()).Logger()
	log.Info().Msg("Proctor attached to roster stream")

	h.sendRoster(c, reqCtx, examID, log)

	refreshTicker := time.NewTicker(h.refreshEvery)
	defer refreshTicker.Stop()
	keepAliveTicker := time.NewTicker(h.keepAliveEvery)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Proctor detached from roster stream")
			return
		case <-refreshTicker.C:
			h.sendRoster(c, reqCtx, examID, log)
		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"timestamp": time.Now().UnixMilli()})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendRoster(c *gin.Context, ctx context.Context, examID uuid.UUID, log zerolog.Logger) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	roster, err := h.monitor.Roster(fetchCtx, examID)
	if err != nil {
		log.Warn().Err(err).Msg("Roster refresh failed")
		return
	}
	c.SSEvent("roster", gin.H{
		"timestamp": time.Now().UnixMilli(),
		"attempts":  roster,
	})
	c.Writer.Flush()
}
