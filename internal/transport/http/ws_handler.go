package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/metrics"
	"github.com/vovakirdan/mentorpad-server/internal/proto"
	"github.com/vovakirdan/mentorpad-server/internal/utils"
)

// WSOptions tune per-connection limits.
type WSOptions struct {
	MaxMessageBytes    int64
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	coord   *core.Coordinator
	log     *zerolog.Logger
	metrics *metrics.Metrics
	opts    WSOptions

	// base is cancelled on shutdown and ends every session.
	base     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(coord *core.Coordinator, logger *zerolog.Logger, m *metrics.Metrics, opts WSOptions) *WSHandler {
	base, stop := context.WithCancel(context.Background())
	return &WSHandler{coord: coord, log: logger, metrics: m, opts: opts, base: base, stop: stop}
}

// Shutdown ends all sessions and waits until their disconnects are persisted.
func (h *WSHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.stop()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for ws sessions: %w", ctx.Err())
	}
}

// track registers a session unless shutdown has started.
func (h *WSHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions.Add(1)
	return true
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.track() {
		stdhttp.Error(w, "server shutting down", stdhttp.StatusServiceUnavailable)
		return
	}
	defer h.sessions.Done()

	ctx, cancelSession := context.WithCancel(r.Context())
	defer cancelSession()
	stopAfter := context.AfterFunc(h.base, cancelSession)
	defer stopAfter()

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID())
	h.metrics.ConnectionOpened()
	h.log.Debug().Str("conn_id", client.ID).Msg("ws connected")
	defer func() {
		// The request context is already done here; the release must still reach the store.
		if _, err := h.coord.Disconnect(context.WithoutCancel(ctx), client); err != nil {
			h.log.Error().Err(err).Str("conn_id", client.ID).Msg("release membership on disconnect")
		}
		h.metrics.ConnectionClosed()
		h.log.Debug().Str("conn_id", client.ID).Msg("ws disconnected")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	budget := newFrameBudget(h.opts.RateLimitPerMinute)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, budget)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	if h.base.Err() != nil {
		status, reason = websocket.StatusGoingAway, "server shutting down"
	}
	conn.Close(status, reason)
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	if len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: originHosts(h.opts.AllowedOrigins)}
}

// originHosts turns configured origins into host patterns.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, budget *frameBudget) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !budget.spend() {
			h.log.Warn().Str("conn_id", client.ID).Int("dropped", budget.droppedTotal()).
				Msg("frame budget spent, edit or join dropped")
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("malformed frame dropped")
			continue
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("conn_id", client.ID).Str("type", inbound.Type).Msg("malformed event dropped")
			continue
		}

		// Commands from one connection run in arrival order.
		h.coord.Handle(ctx, client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
