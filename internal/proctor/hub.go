// Package proctor implements the real-time proctoring channel: per-exam
// rooms of websocket connections owned by a single hub goroutine.
package proctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/metrics"
	"github.com/stemsi/exam-engine/internal/model"
	"golang.org/x/time/rate"
)

const (
	defaultHeartbeat = 25 * time.Second
	deliverBuffer    = 256
	notifyTimeout    = 2 * time.Second
)

// ErrHubStopped is returned by calls made after Run has returned.
var ErrHubStopped = errors.New("proctor hub stopped")

// Identity is the authenticated identity a connection joins a room with.
type Identity struct {
	ExamID    uuid.UUID
	UserID    uuid.UUID
	AttemptID uuid.UUID // zero for proctors
	Proctor   bool
}

// Publisher fans commands out to the hubs of every instance.
type Publisher interface {
	Publish(ctx context.Context, cmd Command) error
}

type delivery struct {
	examID   uuid.UUID
	audience Audience
	userID   uuid.UUID
	to       *Client
	except   *Client
	msg      Message
}

type presenceQuery struct {
	examID uuid.UUID
	reply  chan []uuid.UUID
}

// Hub owns every room. Membership is only touched by the Run goroutine;
// everything else talks to it over channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	presence   chan presenceQuery
	done       chan struct{}

	rooms map[uuid.UUID]map[*Client]struct{}

	heartbeat    time.Duration
	inboundRate  rate.Limit
	inboundBurst int
	publisher    Publisher
	log          zerolog.Logger
	now          func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithHeartbeat sets the interval of server heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithPublisher routes server-initiated commands through p instead of
// delivering them locally.
func WithPublisher(p Publisher) Option {
	return func(h *Hub) { h.publisher = p }
}

// WithInboundRate limits messages accepted from each connection.
func WithInboundRate(perSecond float64, burst int) Option {
	return func(h *Hub) {
		h.inboundRate = rate.Limit(perSecond)
		h.inboundBurst = burst
	}
}

// NewHub creates a hub. It does nothing until Run is called.
func NewHub(log zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		deliver:      make(chan delivery, deliverBuffer),
		presence:     make(chan presenceQuery),
		done:         make(chan struct{}),
		rooms:        make(map[uuid.UUID]map[*Client]struct{}),
		heartbeat:    defaultHeartbeat,
		inboundRate:  rate.Limit(10),
		inboundBurst: 20,
		log:          log.With().Str("component", "proctor_hub").Logger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations, deliveries and heartbeats until ctx is
// cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer h.shutdown()

	h.log.Info().Dur("heartbeat", h.heartbeat).Msg("Proctor hub started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case d := <-h.deliver:
			h.route(d)
		case q := <-h.presence:
			q.reply <- h.online(q.examID)
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	closed := 0
	for examID, room := range h.rooms {
		for c := range room {
			close(c.send)
			metrics.ProctorConnections.Dec()
			closed++
		}
		delete(h.rooms, examID)
	}
	h.log.Info().Int("closed_connections", closed).Msg("Proctor hub stopped")
}

// Serve attaches an upgraded connection to its exam room and starts its
// pumps. The connection is closed when either pump exits.
func (h *Hub) Serve(conn *websocket.Conn, id Identity) {
	c := newClient(h, conn, id)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *Client) {
	room, ok := h.rooms[c.id.ExamID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.id.ExamID] = room
	}
	room[c] = struct{}{}
	metrics.ProctorConnections.Inc()

	now := h.now()
	h.offer(c, h.encode(Message{
		Type:             TypeWelcome,
		ExamID:           c.id.ExamID.String(),
		UserID:           c.id.UserID.String(),
		AttemptID:        attemptString(c.id.AttemptID),
		ServerTime:       now.UnixMilli(),
		HeartbeatSeconds: int(h.heartbeat / time.Second),
	}), TypeWelcome)

	c.log.Info().Int("room_size", len(room)).Msg("Joined proctoring room")
}

func (h *Hub) remove(c *Client) {
	room, ok := h.rooms[c.id.ExamID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	metrics.ProctorConnections.Dec()
	if len(room) == 0 {
		delete(h.rooms, c.id.ExamID)
	}

	c.log.Info().Msg("Left proctoring room")

	h.route(delivery{
		examID:   c.id.ExamID,
		audience: AudienceRoom,
		msg: Message{
			Type:      TypeUserDisconnected,
			ExamID:    c.id.ExamID.String(),
			UserID:    c.id.UserID.String(),
			AttemptID: attemptString(c.id.AttemptID),
		},
	})
}

// route delivers one message to the matching members of a room. Recipients
// are collected before any send.
func (h *Hub) route(d delivery) {
	room := h.rooms[d.examID]
	if len(room) == 0 {
		return
	}

	var targets []*Client
	if d.to != nil {
		if _, ok := room[d.to]; ok {
			targets = append(targets, d.to)
		}
	} else {
		for c := range room {
			if c == d.except {
				continue
			}
			switch d.audience {
			case AudienceUser:
				if c.id.UserID != d.userID {
					continue
				}
			case AudienceProctors:
				if !c.id.Proctor {
					continue
				}
			}
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return
	}

	payload := h.encode(d.msg)
	for _, c := range targets {
		h.offer(c, payload, d.msg.Type)
	}
}

func (h *Hub) beat() {
	now := h.now()
	payload := h.encode(Message{Type: TypeHeartbeat, ServerTime: now.UnixMilli()})
	for _, room := range h.rooms {
		for c := range room {
			h.offer(c, payload, TypeHeartbeat)
		}
	}
}

func (h *Hub) online(examID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	users := []uuid.UUID{}
	for c := range h.rooms[examID] {
		if c.id.Proctor {
			continue
		}
		if _, ok := seen[c.id.UserID]; ok {
			continue
		}
		seen[c.id.UserID] = struct{}{}
		users = append(users, c.id.UserID)
	}
	return users
}

// offer queues payload without blocking. A full buffer drops the message.
func (h *Hub) offer(c *Client, payload []byte, t MessageType) bool {
	if payload == nil {
		return false
	}
	select {
	case c.send <- payload:
		metrics.ProctorMessages.WithLabelValues("out", string(t)).Inc()
		return true
	default:
		c.log.Debug().Str("type", string(t)).Msg("Send buffer full, message dropped")
		return false
	}
}

func (h *Hub) encode(m Message) []byte {
	if m.Timestamp == 0 {
		m.Timestamp = h.now().UnixMilli()
	}
	payload, err := json.Marshal(m)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(m.Type)).Msg("Encode message failed")
		return nil
	}
	return payload
}

func (h *Hub) enqueue(ctx context.Context, d delivery) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.deliver <- d:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch delivers a command to this instance's connections only.
func (h *Hub) Dispatch(ctx context.Context, cmd Command) error {
	return h.enqueue(ctx, delivery{
		examID:   cmd.ExamID,
		audience: cmd.Audience,
		userID:   cmd.UserID,
		msg:      cmd.Message,
	})
}

// Send delivers a command on every instance when a publisher is set, and
// locally otherwise. A failed publish falls back to local delivery.
func (h *Hub) Send(ctx context.Context, cmd Command) error {
	if h.publisher != nil {
		err := h.publisher.Publish(ctx, cmd)
		if err == nil {
			return nil
		}
		h.log.Warn().Err(err).
			Str("exam_id", cmd.ExamID.String()).
			Str("type", string(cmd.Message.Type)).
			Msg("Publish failed, delivering locally")
	}
	return h.Dispatch(ctx, cmd)
}

// Announce sends text to every connection in an exam room.
func (h *Hub) Announce(ctx context.Context, examID uuid.UUID, text string) error {
	return h.Send(ctx, Command{
		ExamID:   examID,
		Audience: AudienceRoom,
		Message:  Message{Type: TypeAnnouncement, ExamID: examID.String(), Message: text},
	})
}

// Warn sends text to one user's connections in an exam room.
func (h *Hub) Warn(ctx context.Context, examID, userID uuid.UUID, text string) error {
	return h.Send(ctx, Command{
		ExamID:   examID,
		Audience: AudienceUser,
		UserID:   userID,
		Message: Message{
			Type:    TypeWarning,
			ExamID:  examID.String(),
			UserID:  userID.String(),
			Message: text,
		},
	})
}

// ForceSubmit tells a student's client that its attempt is closed.
func (h *Hub) ForceSubmit(ctx context.Context, a *model.Attempt, text string) error {
	return h.Send(ctx, Command{
		ExamID:   a.ExamID,
		Audience: AudienceUser,
		UserID:   a.UserID,
		Message: Message{
			Type:      TypeForceSubmit,
			ExamID:    a.ExamID.String(),
			UserID:    a.UserID.String(),
			AttemptID: a.ID.String(),
			Message:   text,
		},
	})
}

// AttemptSubmitted notifies the room's proctors and the attempt owner that
// an attempt was finalized.
func (h *Hub) AttemptSubmitted(a *model.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	msg := Message{
		Type:               TypeAttemptSubmitted,
		ExamID:             a.ExamID.String(),
		UserID:             a.UserID.String(),
		AttemptID:          a.ID.String(),
		AttemptedQuestions: a.AttemptedQuestions,
		FinalScore:         a.FinalScore,
	}
	if a.Result != nil {
		msg.Result = string(*a.Result)
	}
	if a.SubmitReason != nil {
		msg.Reason = string(*a.SubmitReason)
	}

	for _, cmd := range []Command{
		{ExamID: a.ExamID, Audience: AudienceProctors, Message: msg},
		{ExamID: a.ExamID, Audience: AudienceUser, UserID: a.UserID, Message: msg},
	} {
		if err := h.Send(ctx, cmd); err != nil {
			h.log.Warn().Err(err).
				Str("attempt_id", a.ID.String()).
				Str("audience", string(cmd.Audience)).
				Msg("Attempt submitted notice not delivered")
		}
	}
}

// OnlineUsers lists the students connected to an exam room on this instance.
func (h *Hub) OnlineUsers(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	q := presenceQuery{examID: examID, reply: make(chan []uuid.UUID, 1)}
	select {
	case h.presence <- q:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, fmt.Errorf("query presence: %w", ctx.Err())
	}
	select {
	case users := <-q.reply:
		return users, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("query presence: %w", ctx.Err())
	}
}

func attemptString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
