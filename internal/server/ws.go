package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/trace"
)

// client is one websocket connection with its own message budget.
type client struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Every(RateLimitWindow/RateLimitMessages), RateLimitMessages),
	}
}

// hub tracks connected clients for progress broadcasts.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast writes v to every client without waiting on slow ones.
func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
			defer cancel()
			_ = wsjson.Write(ctx, c.conn, v)
		}()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	c := newClient(conn)
	s.clients.add(c)
	defer s.clients.remove(c)

	ctx := r.Context()
	log := trace.Logger(ctx, s.log).With("remote", r.RemoteAddr)
	log.Info("websocket connected", "clients", s.clients.len())

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			log.Debug("websocket closed", "error", err)
			return
		}
		if !c.limiter.Allow() {
			log.Warn("rate limit exceeded")
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Code: string(apperrors.CodeUnavailable), Message: "rate limit exceeded"})
			continue
		}
		s.dispatch(ctx, conn, raw)
	}
}

// dispatch handles one client frame. Malformed frames are dropped.
func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) {
	var base Message
	if err := json.Unmarshal(raw, &base); err != nil {
		return
	}

	switch base.Type {
	case "compare":
		var msg CompareMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		if tc, ok := trace.ExtractFromJSON(raw); ok {
			ctx = trace.WithContext(ctx, tc)
		} else {
			ctx, _ = trace.EnsureContext(ctx)
		}
		s.handleWSCompare(ctx, conn, msg.ID)
	default:
		_ = wsjson.Write(ctx, conn, ErrorMessage{
			Type:    "error",
			Code:    string(apperrors.CodeInvalidArgument),
			Message: "unknown message type " + base.Type,
		})
	}
}

func (s *Server) handleWSCompare(ctx context.Context, conn *websocket.Conn, id string) {
	ctx, span := trace.StartSpan(ctx, "ws_compare")
	defer span.End(trace.Logger(ctx, s.log))
	span.SetAttr("screenshot", id)

	tc, _ := trace.FromContext(ctx)
	item, err := s.runner.Compare(ctx, id)
	if err != nil {
		span.SetAttr("error", err.Error())
		_ = wsjson.Write(ctx, conn, ErrorMessage{
			Type:    "error",
			Code:    string(apperrors.CodeOf(err)),
			Message: err.Error(),
			TraceID: tc.TraceID,
		})
		return
	}
	_ = wsjson.Write(ctx, conn, ResultMessage{Type: "result", Item: item, TraceID: tc.TraceID})
}

// broadcastProgress forwards run events to every connected client until Close.
func (s *Server) broadcastProgress() {
	defer close(s.stopped)
	events := s.runner.History().Events()
	for {
		select {
		case <-s.done:
			return
		case evt := <-events:
			s.clients.broadcast(ProgressMessage{
				Type:  "progress",
				RunID: evt.RunID,
				Done:  evt.Done,
				Total: evt.Total,
				Item:  evt.Item,
			})
		}
	}
}
