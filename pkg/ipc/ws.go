package ipc

import (
	"context"
	"encoding/json"
	stdliberrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/odvcencio/livewidgets/pkg/engine"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/render/remote"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

// Frames the server adds to the render stream in reply to client messages.
const (
	OpAck   = "ack"
	OpError = "error"
)

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorFrame(msgType, element string, err error) remote.Frame {
	payload := wsError{Code: string(apperrors.ErrCodeInternal), Message: err.Error()}
	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		payload.Code = string(appErr.Code)
		payload.Message = appErr.Message
	}
	return remote.Frame{Op: OpError, Name: msgType, Element: element, Payload: payload}
}

func (s *Server) handlePageSocket(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page")
	page, err := s.manager.Page(pageID)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	if !s.origins.allowsSocket(r) {
		respondError(w, http.StatusForbidden, stdliberrors.New("forbidden"))
		return
	}
	if !s.wsLimiter.Acquire() {
		respondError(w, http.StatusTooManyRequests, stdliberrors.New("too many connections"))
		return
	}
	defer s.wsLimiter.Release()

	// Origin is checked above against the configured allow list.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Printf("page websocket accept failed: %v", err)
		return
	}
	conn.SetReadLimit(maxWSReadBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go keepAlive(ctx, conn, wsPingInterval, wsPingTimeout, func(err error) {
		s.logger.Printf("page %s websocket ping failed: %v", pageID, err)
		cancel()
	})

	registered := make(chan *client, 1)
	err = page.Attach(ctx, func(snapshot []remote.Frame) {
		if ctx.Err() != nil {
			return
		}
		c := s.hub.register(pageID, conn, len(snapshot)+clientBacklog)
		for _, f := range snapshot {
			c.enqueueFrame(f)
		}
		registered <- c
	})
	var c *client
	select {
	case c = <-registered:
	default:
	}
	if err != nil || c == nil {
		if c != nil {
			s.hub.removeClient(c)
		}
		_ = conn.Close(websocket.StatusTryAgainLater, "page unavailable")
		return
	}

	go func() {
		defer cancel()
		if err := c.writeLoop(ctx); err != nil && ctx.Err() == nil {
			s.logger.Printf("page %s websocket write error: %v", pageID, err)
		}
	}()
	go func() {
		select {
		case <-page.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	s.readClient(ctx, c, page)

	cancel()
	s.hub.removeClient(c)
	c.close(websocket.StatusNormalClosure, "closing")
}

// readClient applies client messages until the socket closes. Each
// message is answered with an ack or error frame.
func (s *Server) readClient(ctx context.Context, c *client, page *engine.Page) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if !limiter.Allow() {
			telemetry.WSMessages.WithLabelValues("in", "limited").Inc()
			c.enqueueFrame(errorFrame("", "", apperrors.New(apperrors.ErrCodeInvalidInput, "rate limit exceeded")))
			continue
		}
		var msg engine.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			telemetry.WSMessages.WithLabelValues("in", "malformed").Inc()
			c.enqueueFrame(errorFrame("", "", apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "malformed client message")))
			continue
		}
		handled, err := page.HandleClient(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.WSMessages.WithLabelValues("in", "error").Inc()
			c.enqueueFrame(errorFrame(msg.Type, msg.Element, err))
			continue
		}
		telemetry.WSMessages.WithLabelValues("in", "ok").Inc()
		c.enqueueFrame(remote.Frame{Op: OpAck, Name: msg.Type, Element: msg.Element, On: handled})
	}
}
