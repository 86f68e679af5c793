package playstore

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// BridgeHandler exposes an update.UpdateBackend over the bridge protocol.
// Each websocket connection gets its own subscription.
type BridgeHandler struct {
	backend  update.UpdateBackend
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewBridgeHandler creates a handler serving backend.
func NewBridgeHandler(backend update.UpdateBackend, log zerolog.Logger) *BridgeHandler {
	return &BridgeHandler{
		backend: backend,
		log:     log.With().Str("component", "bridge-server").Logger(),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"jsonrpc"},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
}

func (h *BridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s := &bridgeSession{conn: conn, backend: h.backend, log: h.log}
	s.run(r.Context())
}

type bridgeSession struct {
	conn    *websocket.Conn
	backend update.UpdateBackend
	log     zerolog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	cancel func()
}

func (s *bridgeSession) run(ctx context.Context) {
	defer func() {
		s.unsubscribe()
		_ = s.conn.Close()
	}()

	for {
		var msg rpcMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("bridge session ended")
			}
			return
		}
		s.handle(ctx, &msg)
	}
}

func (s *bridgeSession) handle(ctx context.Context, msg *rpcMessage) {
	var (
		result any
		err    error
	)

	switch msg.Method {
	case methodCheck:
		result, err = s.backend.QueryAvailability(ctx)
	case methodStart:
		var p startParams
		if len(msg.Params) > 0 {
			if uerr := json.Unmarshal(msg.Params, &p); uerr != nil {
				err = update.WrapError(update.KindUnknown, "invalid startUpdate params", uerr)
				break
			}
		}
		err = s.backend.StartFlow(ctx, p.UpdateType)
	case methodComplete:
		err = s.backend.CompleteFlow(ctx)
	case methodSubscribe:
		err = s.subscribe()
	case methodUnsubscribe:
		s.unsubscribe()
	default:
		err = update.Errorf(update.KindUnknown, "unknown method %q", msg.Method)
	}

	if msg.ID == nil {
		if err != nil {
			s.log.Warn().Err(err).Str("method", msg.Method).Msg("notification failed")
		}
		return
	}

	resp := &rpcMessage{JSONRPC: jsonrpcVersion, ID: msg.ID}
	if err != nil {
		resp.Error = toRPCError(err)
	} else if result != nil {
		raw, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = toRPCError(merr)
		} else {
			resp.Result = raw
		}
	}
	s.send(resp)
}

func (s *bridgeSession) subscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	cancel, err := s.backend.Subscribe(func(st update.InstallState) {
		raw, err := json.Marshal(st)
		if err != nil {
			return
		}
		s.send(&rpcMessage{JSONRPC: jsonrpcVersion, Method: EventFor(st.Status), Params: raw})
	})
	if err != nil {
		return err
	}
	s.cancel = cancel
	return nil
}

func (s *bridgeSession) unsubscribe() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *bridgeSession) send(msg *rpcMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.log.Debug().Err(err).Str("method", msg.Method).Msg("bridge write failed")
	}
}
