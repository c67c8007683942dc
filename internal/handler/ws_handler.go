package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/proctor"
	"github.com/stemsi/exam-engine/internal/response"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

type attemptVerifier interface {
	VerifyAttempt(ctx context.Context, attemptID, userID, examID uuid.UUID) (*model.Attempt, error)
}

type roomServer interface {
	Serve(conn *websocket.Conn, id proctor.Identity)
}

// WSHandler upgrades proctoring channel connections.
type WSHandler struct {
	attempts attemptVerifier
	hub      roomServer
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts attemptVerifier, hub roomServer, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ProctorChannel godoc
// WS /ws/v1/proctor?token=...&examId=...&attemptId=...
// Joins the exam's proctoring room. The user comes from the token; students
// must own a running attempt of the exam, proctors join without one.
func (h *WSHandler) ProctorChannel(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}

	examID, err := uuid.Parse(c.Query("examId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	id := proctor.Identity{
		ExamID:  examID,
		UserID:  claims.UserID,
		Proctor: claims.Role.CanProctor(),
	}

	if !id.Proctor {
		attemptID, err := uuid.Parse(c.Query("attemptId"))
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		// SECURITY: the attempt must belong to the token's user and exam.
		if _, err := h.attempts.VerifyAttempt(c.Request.Context(), attemptID, claims.UserID, examID); err != nil {
			failWith(c, h.log, err)
			return
		}
		id.AttemptID = attemptID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.hub.Serve(conn, id)
}
