package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/api/response"
	"github.com/kiranshivaraju/clusterportal/internal/portal"
	"github.com/kiranshivaraju/clusterportal/internal/refresh"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Client message types.
const (
	msgSetInterval            = "set_interval"
	msgReload                 = "reload"
	msgOpenJobConfig          = "open_job_config"
	msgOpenApplicationSummary = "open_application_summary"
	msgDismiss                = "dismiss"
	msgStop                   = "stop"
)

// clientMessage is a message from the browser. Interval is in milliseconds.
type clientMessage struct {
	Type     string `json:"type"`
	Interval *int64 `json:"interval,omitempty"`
}

// serverMessage is a message to the browser: a summary, the view state or
// an error.
type serverMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sessionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WatchHandler serves live job summaries over WebSocket. The server owns
// each view's state and auto refresh timer.
type WatchHandler struct {
	views    JobViews
	upgrader websocket.Upgrader

	// Hijacked connections are not closed by http.Server.Shutdown; sessions
	// end when base is cancelled.
	base     context.Context
	shutdown context.CancelFunc
}

func NewWatchHandler(views JobViews) *WatchHandler {
	base, shutdown := context.WithCancel(context.Background())
	return &WatchHandler{
		views: views,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		base:     base,
		shutdown: shutdown,
	}
}

// Close ends every open watch session with a going-away close frame. It is
// meant for http.Server.RegisterOnShutdown.
func (h *WatchHandler) Close() {
	h.shutdown()
}

// Watch handles GET /api/v1/jobs/{username}/{jobName}/watch.
func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if _, ok := mw.GetIdentity(r); !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}
	username, jobName := jobParams(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "request_id", mw.GetRequestID(r))
		return
	}

	s := &session{
		id:       uuid.NewString(),
		conn:     conn,
		views:    h.views,
		username: username,
		jobName:  jobName,
		state:    refresh.NewViewState(),
		events:   make(chan any),
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	s.run(ctx)
}

// Session events. All of them are handled on the session loop.
type (
	tickEvent   struct{}
	clientEvent struct{ msg clientMessage }
	reloadEvent struct {
		detail *portal.JobDetail
		err    error
	}
	stopEvent   struct{ err error }
	closedEvent struct{ err error }
)

// session is one live summary view. Only the loop goroutine touches state,
// detail and the connection's write side.
type session struct {
	id       string
	conn     *websocket.Conn
	views    JobViews
	username string
	jobName  string

	state  refresh.ViewState
	detail *portal.JobDetail
	ticker *refresh.Ticker
	events chan any
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	log := slog.With("session_id", s.id, "username", s.username, "job", s.jobName)
	log.Info("watch session opened")
	defer log.Info("watch session closed")

	s.ticker = refresh.NewTicker(func(tctx context.Context) {
		select {
		case s.events <- tickEvent{}:
		case <-tctx.Done():
		}
	})
	defer s.ticker.Stop()

	go s.readLoop(ctx)

	s.send(serverMessage{Type: "view", Data: s.state})
	go s.reload(ctx)
	s.ticker.Reset(s.state.Interval)

	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case ev := <-s.events:
			if !s.handle(ctx, ev) {
				return
			}
		}
	}
}

// handle applies one event. It returns false when the session should end.
func (s *session) handle(ctx context.Context, ev any) bool {
	switch ev := ev.(type) {
	case tickEvent:
		go s.reload(ctx)
	case reloadEvent:
		if ev.err != nil {
			s.sendError(ev.err)
			return true
		}
		s.detail = ev.detail
		s.send(serverMessage{Type: "summary", Data: ev.detail.Summary})
	case stopEvent:
		if ev.err != nil {
			s.sendError(ev.err)
			return true
		}
		go s.reload(ctx)
	case clientEvent:
		s.handleMessage(ctx, ev.msg)
	case closedEvent:
		if websocket.IsUnexpectedCloseError(ev.err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			slog.Warn("watch session read failed", "error", ev.err, "session_id", s.id)
		}
		return false
	}
	return true
}

func (s *session) handleMessage(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case msgReload:
		go s.reload(ctx)
	case msgSetInterval:
		if msg.Interval == nil {
			s.sendCode("INVALID_INTERVAL", "interval is required")
			return
		}
		d := time.Duration(*msg.Interval) * time.Millisecond
		if !refresh.ValidInterval(d) {
			s.sendCode("INVALID_INTERVAL", "interval must be one of 0, 10000, 30000, 60000")
			return
		}
		next := refresh.Reduce(s.state, refresh.SetInterval{Interval: d})
		if next.Interval != s.state.Interval {
			s.ticker.Reset(next.Interval)
		}
		s.setState(next)
	case msgOpenJobConfig:
		if s.detail == nil || s.detail.Config == nil {
			s.sendCode("ACTION_DISABLED", "job config is not available")
			return
		}
		s.setState(refresh.Reduce(s.state, refresh.OpenJobConfig{Config: s.detail.Config}))
	case msgOpenApplicationSummary:
		if s.detail == nil || s.detail.Job.Diagnostics() == "" {
			s.sendCode("ACTION_DISABLED", "application summary is not available")
			return
		}
		s.setState(refresh.Reduce(s.state, refresh.OpenApplicationSummary{Diagnostics: s.detail.Job.Diagnostics()}))
	case msgDismiss:
		s.setState(refresh.Reduce(s.state, refresh.Dismiss{}))
	case msgStop:
		if s.detail == nil || !s.detail.Summary.Actions.Stop.Enabled {
			s.sendCode("JOB_NOT_STOPPABLE", "Only waiting or running jobs can be stopped")
			return
		}
		go s.stop(ctx)
	default:
		s.sendCode("UNKNOWN_MESSAGE", "unknown message type")
	}
}

func (s *session) setState(next refresh.ViewState) {
	s.state = next
	s.send(serverMessage{Type: "view", Data: s.state})
}

func (s *session) reload(ctx context.Context) {
	d, err := s.views.Detail(ctx, s.username, s.jobName)
	s.post(ctx, reloadEvent{detail: d, err: err})
}

func (s *session) stop(ctx context.Context) {
	err := s.views.Stop(ctx, s.username, s.jobName)
	s.post(ctx, stopEvent{err: err})
}

func (s *session) post(ctx context.Context, ev any) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.post(ctx, closedEvent{err: err})
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Answered as an unknown message.
			msg = clientMessage{}
		}
		s.post(ctx, clientEvent{msg: msg})
	}
}

func (s *session) send(m serverMessage) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(m); err != nil {
		slog.Warn("watch session write failed", "error", err, "session_id", s.id)
	}
}

func (s *session) sendError(err error) {
	_, code, msg := jobsErrorStatus(err)
	if code == "INTERNAL_ERROR" {
		slog.Error("watch session request failed", "error", err, "session_id", s.id)
	}
	s.sendCode(code, msg)
}

func (s *session) sendCode(code, message string) {
	s.send(serverMessage{Type: "error", Data: sessionError{Code: code, Message: message}})
}
