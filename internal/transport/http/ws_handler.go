package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"arith-live-service/internal/app"
	"arith-live-service/internal/domain"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WSHandler is the push transport. A socket is bound to at most one session at a
// time and receives every event of that session; mutations arrive as typed messages.
type WSHandler struct {
	service  *app.LiveService
	identity IdentityFunc
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveService, identity IdentityFunc) *WSHandler {
	if identity == nil {
		identity = func(*http.Request) string { return "" }
	}
	return &WSHandler{
		service:  service,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// target names a session by id or by join code.
type target struct {
	SessionID     string `json:"sessionId"`
	Code          string `json:"code"`
	ParticipantID string `json:"participantId"`
}

type wsCreatePayload struct {
	Settings       domain.Settings `json:"settings"`
	PriorSessionID string          `json:"priorSessionId"`
}

type wsJoinPayload struct {
	target
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
}

type wsAnswerPayload struct {
	ProblemID string  `json:"problemId"`
	Value     float64 `json:"value"`
	ElapsedMs int64   `json:"elapsedMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	Session domain.SessionView `json:"session"`
}

type joinAccepted struct {
	Participant domain.Participant `json:"participant"`
	Session     domain.SessionView `json:"session"`
}

// ServeWS upgrades the request and serves one viewer. Optional sessionId or code
// query parameters bind the socket immediately; participantId re-attaches a
// reconnecting participant.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &wsConn{
		h:        h,
		ctx:      context.Background(),
		external: h.identity(r),
		send:     make(chan outboundMessage[any], 32),
		done:     make(chan struct{}),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range c.send {
			if failed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Warn("ws write error", "error", err)
				failed = true
				// unblock the reader; keep draining so producers never stall
				conn.Close()
			}
		}
	}()

	q := r.URL.Query()
	if q.Get("sessionId") != "" || q.Get("code") != "" {
		c.watch(target{SessionID: q.Get("sessionId"), Code: q.Get("code"), ParticipantID: q.Get("participantId")})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(inbound)
	}

	close(c.done)
	c.unbind()
	if c.participantID != "" {
		h.service.Leave(c.ctx, c.sessionID, c.participantID)
	}
	close(c.send)
	<-writerDone
}

// wsConn is the per-socket state. Only the reader goroutine touches the binding fields.
type wsConn struct {
	h        *WSHandler
	ctx      context.Context
	external string
	send     chan outboundMessage[any]
	done     chan struct{}

	sessionID     string
	participantID string
	stopForward   func()
}

func (c *wsConn) handle(in inboundMessage) {
	switch in.Type {
	case "create":
		var p wsCreatePayload
		if !c.decode(in.Payload, &p) {
			return
		}
		view, err := c.h.service.Create(c.ctx, p.Settings, p.PriorSessionID)
		if err != nil {
			c.fail(err)
			return
		}
		c.bind(view.ID, "")
		c.reply("created", sessionPayload{Session: view})
	case "watch":
		var p target
		if !c.decode(in.Payload, &p) {
			return
		}
		c.watch(p)
	case "join":
		var p wsJoinPayload
		if !c.decode(in.Payload, &p) {
			return
		}
		sessionID, err := c.resolve(p.target)
		if err != nil {
			c.fail(err)
			return
		}
		external := p.ExternalID
		if external == "" {
			external = c.external
		}
		participant, view, err := c.h.service.Join(c.ctx, sessionID, p.Name, external)
		if err != nil {
			c.fail(err)
			return
		}
		c.bind(sessionID, participant.ID)
		c.reply("joinAccepted", joinAccepted{Participant: participant, Session: view})
	case "start":
		if !c.bound() {
			return
		}
		if _, err := c.h.service.Start(c.ctx, c.sessionID); err != nil {
			c.fail(err)
		}
	case "answer":
		var p wsAnswerPayload
		if !c.decode(in.Payload, &p) {
			return
		}
		if c.participantID == "" {
			c.fail(fmt.Errorf("%w: join the session before answering", domain.ErrInvalidInput))
			return
		}
		res, err := c.h.service.SubmitAnswer(c.ctx, c.sessionID, c.participantID, p.ProblemID, p.Value, p.ElapsedMs)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("answerResult", res)
	case "abort":
		if !c.bound() {
			return
		}
		if _, err := c.h.service.Abort(c.ctx, c.sessionID); err != nil {
			c.fail(err)
		}
	case "leave":
		if c.participantID != "" {
			c.h.service.Leave(c.ctx, c.sessionID, c.participantID)
			c.participantID = ""
		}
	default:
		c.fail(fmt.Errorf("%w: unsupported message type %q", domain.ErrInvalidInput, in.Type))
	}
}

// watch binds the socket to an existing session. The subscription's first event is
// a full snapshot, which is how reconnecting viewers recover missed events.
func (c *wsConn) watch(t target) {
	sessionID, err := c.resolve(t)
	if err != nil {
		c.fail(err)
		return
	}
	participantID := ""
	if t.ParticipantID != "" {
		p, err := c.h.service.Participant(c.ctx, sessionID, t.ParticipantID)
		if err != nil {
			c.fail(err)
			return
		}
		participantID = p.ID
		c.reply("participant", p)
	}
	c.bind(sessionID, participantID)
}

func (c *wsConn) resolve(t target) (string, error) {
	if t.SessionID != "" {
		return t.SessionID, nil
	}
	if t.Code == "" {
		return "", fmt.Errorf("%w: sessionId or code is required", domain.ErrInvalidInput)
	}
	view, err := c.h.service.GetByCode(c.ctx, t.Code)
	if err != nil {
		return "", err
	}
	return view.ID, nil
}

// bind subscribes the socket to sessionID, replacing any earlier subscription. A socket
// holds at most one seat: a participant bound before leaves when it is replaced.
func (c *wsConn) bind(sessionID, participantID string) {
	if c.sessionID == sessionID && c.stopForward != nil {
		if participantID != "" {
			if c.participantID != "" && c.participantID != participantID {
				c.h.service.Leave(c.ctx, c.sessionID, c.participantID)
			}
			c.participantID = participantID
		}
		return
	}
	updates, cancel, err := c.h.service.Subscribe(c.ctx, sessionID)
	if err != nil {
		c.fail(err)
		return
	}
	c.unbind()
	if c.participantID != "" {
		// A seat left behind would keep the old session from completing.
		c.h.service.Leave(c.ctx, c.sessionID, c.participantID)
	}
	c.sessionID, c.participantID = sessionID, participantID

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for ev := range updates {
			select {
			case c.send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
			case <-c.done:
				return
			}
		}
	}()
	c.stopForward = func() {
		cancel()
		<-forwardDone
	}
}

func (c *wsConn) unbind() {
	if c.stopForward != nil {
		c.stopForward()
		c.stopForward = nil
	}
}

func (c *wsConn) bound() bool {
	if c.sessionID == "" {
		c.fail(fmt.Errorf("%w: no session bound to this connection", domain.ErrInvalidInput))
		return false
	}
	return true
}

func (c *wsConn) decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.fail(fmt.Errorf("%w: malformed payload", domain.ErrInvalidInput))
		return false
	}
	return true
}

func (c *wsConn) reply(typ string, payload any) {
	c.send <- outboundMessage[any]{Type: typ, Payload: payload}
}

func (c *wsConn) fail(err error) {
	if status, _ := classify(err); status == http.StatusInternalServerError {
		slog.Error("ws request failed", "session_id", c.sessionID, "error", err)
	}
	c.reply("error", newErrorPayload(err))
}
