package proctor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
	maxHelpLength  = 500
)

// Client is one websocket connection in a proctoring room.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      Identity
	limiter *rate.Limiter
	log     zerolog.Logger

	lastSeen time.Time // last client heartbeat, read pump only
}

func newClient(h *Hub, conn *websocket.Conn, id Identity) *Client {
	logCtx := h.log.With().
		Str("exam_id", id.ExamID.String()).
		Str("user_id", id.UserID.String()).
		Bool("proctor", id.Proctor)
	if !id.Proctor {
		logCtx = logCtx.Str("attempt_id", id.AttemptID.String())
	}
	return &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		id:      id,
		limiter: rate.NewLimiter(h.inboundRate, h.inboundBurst),
		log:     logCtx.Logger(),
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				c.log.Debug().Time("last_heartbeat", c.lastSeen).Msg("Connection closed")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			c.log.Debug().Msg("Inbound rate exceeded, message dropped")
			continue
		}

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.log.Warn().Err(err).Msg("Malformed message dropped")
			continue
		}
		metrics.ProctorMessages.WithLabelValues("in", inboundLabel(in.Type)).Inc()

		if err := c.handle(&in); err != nil {
			// Hub stopped; the write pump is closing the connection.
			return
		}
	}
}

func (c *Client) handle(in *Inbound) error {
	ctx := context.Background()
	id := &c.id

	switch in.Type {
	case TypeHeartbeat:
		c.lastSeen = c.hub.now()
		return nil

	case TypeTimeSync:
		return c.hub.enqueue(ctx, delivery{
			examID: id.ExamID,
			to:     c,
			msg: Message{
				Type:       TypeTimeSync,
				ServerTime: c.hub.now().UnixMilli(),
				ClientTime: in.ClientTime,
			},
		})

	case TypeAnswerUpdate:
		if id.Proctor {
			return nil
		}
		return c.hub.enqueue(ctx, delivery{
			examID:   id.ExamID,
			audience: AudienceRoom,
			except:   c,
			msg: Message{
				Type:               TypeAnswerUpdate,
				ExamID:             id.ExamID.String(),
				UserID:             id.UserID.String(),
				AttemptID:          attemptString(id.AttemptID),
				ItemID:             in.ItemID,
				AttemptedQuestions: in.AttemptedQuestions,
			},
		})

	case TypeRequestHelp:
		if id.Proctor {
			return nil
		}
		text := in.Message
		if r := []rune(text); len(r) > maxHelpLength {
			text = string(r[:maxHelpLength])
		}
		return c.hub.enqueue(ctx, delivery{
			examID:   id.ExamID,
			audience: AudienceProctors,
			msg: Message{
				Type:      TypeHelpRequest,
				ExamID:    id.ExamID.String(),
				UserID:    id.UserID.String(),
				AttemptID: attemptString(id.AttemptID),
				Message:   text,
			},
		})

	default:
		c.log.Warn().Str("type", string(in.Type)).Msg("Unknown message type")
		return c.hub.enqueue(ctx, delivery{
			examID: id.ExamID,
			to:     c,
			msg:    Message{Type: TypeError, Message: "unknown message type: " + string(in.Type)},
		})
	}
}

// inboundLabel keeps client-chosen types out of metric labels.
func inboundLabel(t MessageType) string {
	switch t {
	case TypeHeartbeat, TypeAnswerUpdate, TypeTimeSync, TypeRequestHelp:
		return string(t)
	}
	return "unknown"
}

// writePump writes one frame per queued message and pings on an interval.
// It owns every write to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
