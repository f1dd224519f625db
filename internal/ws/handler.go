package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/codeshare-backend/internal/hub"
	"github.com/DoyleJ11/codeshare-backend/internal/protocol"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 25 * time.Second
)

type Config struct {
	OriginPatterns    []string
	OutboxSize        int
	MessagesPerSecond float64
	MessageBurst      int
	MaxMessageBytes   int64
}

// Handler upgrades the request and runs one session until the connection
// closes. Everything the client sends goes through the hub inbox.
func Handler(h *hub.Hub, cfg Config, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		if cfg.MaxMessageBytes > 0 {
			conn.SetReadLimit(cfg.MaxMessageBytes)
		}

		sessionID := uuid.NewString()
		clog := log.With(zap.String("session", sessionID))

		out := make(chan protocol.Outbound, cfg.OutboxSize)
		if !h.Send(r.Context(), hub.Connect{SessionID: sessionID, Outbox: out}) {
			conn.Close(websocket.StatusTryAgainLater, "shutting down")
			return
		}
		clog.Info("client connected", zap.String("remote", r.RemoteAddr))
		defer func() {
			h.Send(context.Background(), hub.Disconnect{SessionID: sessionID})
			clog.Info("client disconnected")
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go writeLoop(ctx, conn, out, h.Stopping(), clog)
		go keepAlive(ctx, conn, clog)

		limiter := rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst)
		dropped := 0

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						clog.Debug("read failed", zap.Error(err))
					}
				}
				return
			}

			if !limiter.Allow() {
				dropped++
				if dropped%100 == 1 {
					clog.Warn("rate limit exceeded, dropping events", zap.Int("dropped", dropped))
				}
				continue
			}

			ev, err := protocol.Decode(data)
			if err != nil {
				h.Send(ctx, hub.Reject{SessionID: sessionID, Message: err.Error()})
				continue
			}
			if !h.Send(ctx, hub.FromClient{SessionID: sessionID, Event: ev}) {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
		}
	}
}

// writeLoop drains the outbox. The hub closes the outbox when it shuts down
// or drops the session for being slow; either way the connection goes too.
func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan protocol.Outbound, stopping <-chan struct{}, log *zap.Logger) {
	for ev := range out {
		payload, err := protocol.Encode(ev)
		if err != nil {
			log.Error("encode event", zap.String("event", ev.Event()), zap.Error(err))
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeWait)
		err = conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			log.Debug("write failed", zap.Error(err))
			conn.CloseNow()
			return
		}
	}
	select {
	case <-stopping:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		conn.Close(websocket.StatusPolicyViolation, "session dropped")
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("ping failed", zap.Error(err))
				conn.CloseNow()
				return
			}
		}
	}
}
