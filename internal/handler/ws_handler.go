package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/exam"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/middleware"
	"github.com/stemsi/drivetest-backend/internal/response"
	"github.com/stemsi/drivetest-backend/internal/service"
	ws "github.com/stemsi/drivetest-backend/internal/websocket"
)

// tickInterval paces the state pushes that carry the mock test countdown.
const tickInterval = time.Second

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
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles WebSocket exam streaming.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	tick           time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            logger.Component(log, "ws_handler"),
		upgrader:       buildUpgrader(allowedOrigins),
		tick:           tickInterval,
	}
}

// streamConn serializes writes; gorilla connections allow one concurrent writer.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *streamConn) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ws.WriteTyped(s.conn, v)
}

func (s *streamConn) writeError(err error) error {
	_, code := sessionErrorCode(err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return ws.WriteError(s.conn, string(code), response.GetMessage(code))
}

// ExamStream godoc
// WS /ws/v1/student/exams/:id/stream?token=
// Pushes the session state every second and the result once the session
// ends, including on mock test timer expiry. Accepts select, advance,
// retreat, submit and ping actions.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Reject before upgrading so the client gets a proper HTTP status.
	ctrl, err := h.sessionService.Live(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failSession(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("session_id", id.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	sc := &streamConn{conn: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go h.push(ctx, cancel, sc, ctrl, wsLog)

	for {
		var req ws.Request
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		if err := h.handleAction(ctx, sc, claims.UserID, id, req); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

// push sends a state event every tick until the session completes, then the
// completed event, then closes the stream.
func (h *WSHandler) push(ctx context.Context, cancel context.CancelFunc, sc *streamConn, ctrl *exam.Controller, log zerolog.Logger) {
	defer cancel()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	if err := sc.write(ws.StateResponse{Event: ws.EventState, State: ctrl.Snapshot()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Done():
			res := ctrl.Result()
			evt := ws.CompletedResponse{Event: ws.EventCompleted, Result: res}
			if res != nil && res.ReportErr != nil {
				evt.ReportError = "result could not be saved"
			}
			if err := sc.write(evt); err != nil {
				return
			}
			log.Info().Msg("Session completed, closing stream")

			sc.mu.Lock()
			_ = sc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session completed"),
				time.Now().Add(time.Second))
			sc.mu.Unlock()
			return
		case <-ticker.C:
			if err := sc.write(ws.StateResponse{Event: ws.EventState, State: ctrl.Snapshot()}); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleAction(ctx context.Context, sc *streamConn, userID, id uuid.UUID, req ws.Request) error {
	var (
		snap exam.Snapshot
		err  error
	)

	switch req.Action {
	case ws.ActionPing:
		return sc.write(ws.PongResponse{Event: ws.EventPong})
	case ws.ActionSelect:
		snap, err = h.sessionService.SelectAnswer(ctx, userID, id, req.AnswerID)
	case ws.ActionAdvance:
		snap, err = h.sessionService.Advance(ctx, userID, id)
	case ws.ActionRetreat:
		snap, err = h.sessionService.Retreat(ctx, userID, id)
	case ws.ActionSubmit:
		// The completed event follows from the push loop.
		_, err = h.sessionService.Submit(ctx, userID, id)
		if err == nil {
			return nil
		}
	default:
		h.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		sc.mu.Lock()
		defer sc.mu.Unlock()
		return ws.WriteError(sc.conn, string(response.ErrInvalidPayload), "unknown action: "+string(req.Action))
	}

	if err != nil {
		return sc.writeError(err)
	}
	if snap.State == exam.StateCompleted {
		return nil
	}
	return sc.write(ws.StateResponse{Event: ws.EventState, State: snap})
}
