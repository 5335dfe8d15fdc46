package websocket

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"relaychat/internal/registry"
)

// Relay is the hub surface the transport needs: connection lifecycle plus
// raw inbound frames.
type Relay interface {
	Connect(c registry.Client) (*registry.Session, error)
	Inbound(sess *registry.Session, data []byte) error
	Disconnect(sess *registry.Session) error
}

// Options tunes the transport. Zero values fall back to the defaults below.
type Options struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	UpgradesPerSec float64 // per remote address
	UpgradeBurst   int
	TrustForwarded bool // take the client address from X-Forwarded-For
}

func (o *Options) fillDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.UpgradesPerSec <= 0 {
		o.UpgradesPerSec = 2
	}
	if o.UpgradeBurst <= 0 {
		o.UpgradeBurst = 5
	}
}

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from anywhere; the protocol carries no
		// cookie-based credentials to protect.
		return true
	},
}

// Limiters for addresses not seen in a while are dropped so the map does
// not grow without bound under address churn. An evicted address simply
// gets a fresh bucket on its next upgrade.
const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

type addrLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Handler upgrades HTTP requests and pumps frames between the socket and
// the relay. A per-address token bucket caps upgrade churn before any relay
// state is touched.
type Handler struct {
	relay     Relay
	opts      Options
	mu        sync.Mutex
	limiters  map[string]*addrLimiter
	lastSweep time.Time
	now       func() time.Time
}

func NewHandler(relay Relay, opts Options) *Handler {
	opts.fillDefaults()
	return &Handler{
		relay:    relay,
		opts:     opts,
		limiters: make(map[string]*addrLimiter),
		now:      time.Now,
	}
}

func (h *Handler) allowUpgrade(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	if now.Sub(h.lastSweep) >= limiterSweepEvery {
		for a, al := range h.limiters {
			if now.Sub(al.lastSeen) >= limiterIdleAfter {
				delete(h.limiters, a)
			}
		}
		h.lastSweep = now
	}
	al, ok := h.limiters[addr]
	if !ok {
		al = &addrLimiter{limiter: rate.NewLimiter(rate.Limit(h.opts.UpgradesPerSec), h.opts.UpgradeBurst)}
		h.limiters[addr] = al
	}
	al.lastSeen = now
	return al.limiter.Allow()
}

// ServeWS handles a WebSocket upgrade request.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r, h.opts.TrustForwarded)
	if !h.allowUpgrade(addr) {
		http.Error(w, "connecting too fast", http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed for %s: %v", addr, err)
		return
	}

	conn := newConn(ws, addr, h.opts.WriteTimeout)
	sess, err := h.relay.Connect(conn)
	if err != nil {
		log.Printf("connect rejected for %s: %v", addr, err)
		_ = conn.Close()
		return
	}

	go h.readLoop(conn, sess)
}

// readLoop pumps inbound frames into the relay until the connection dies,
// then reports the disconnect exactly once.
func (h *Handler) readLoop(conn *Conn, sess *registry.Session) {
	defer func() {
		_ = h.relay.Disconnect(sess)
		_ = conn.Close()
	}()

	// Transport-level bound only: the dispatcher applies the protocol frame
	// ceiling itself and drops oversized frames without closing the socket.
	conn.ws.SetReadLimit(1 << 20)

	if err := conn.ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.opts.WriteTimeout)
				if err := conn.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s: %v", conn.Addr(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// Frames received before a disconnect are delivered in order; any
		// that arrive after shutdown are dropped by the relay.
		if err := h.relay.Inbound(sess, data); err != nil {
			return
		}
	}
}

// clientAddr resolves the identity address the police scores against. When
// the server sits behind a trusted proxy the first X-Forwarded-For hop is
// the real client; otherwise the socket peer is.
func clientAddr(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
