// Package hub is the relay core: it owns the connection registry and the
// police, dispatches inbound command frames, and fans chat out to channels.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/identity"
	"relaychat/internal/police"
	"relaychat/internal/registry"
	"relaychat/pkg/proto"
)

type eventKind int

const (
	evConnect eventKind = iota
	evFrame
	evDisconnect
)

type event struct {
	kind eventKind
	sess *registry.Session
	data []byte
}

// Hub processes every connect, frame, and disconnect on a single goroutine.
// That one owner serializes all registry and session mutation, which is what
// keeps the per-channel nick-uniqueness check race-free: the collision scan
// and the nick assignment happen inside one event.
type Hub struct {
	registry *registry.Registry
	police   *police.Police
	ident    *identity.Resolver
	salt     string

	events     chan event
	shutdownCh chan struct{}

	running bool
	mu      sync.RWMutex
	now     func() time.Time
}

// New creates a hub around the shared registry and police.
func New(reg *registry.Registry, pol *police.Police, ident *identity.Resolver, salt string) *Hub {
	return &Hub{
		registry: reg,
		police:   pol,
		ident:    ident,
		salt:     salt,
		events:   make(chan event, 1024),
		now:      time.Now,
	}
}

// Start begins event processing. A stopped hub can be started again; events
// still queued from the previous run are processed by the new one.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrAlreadyRunning
	}
	h.running = true
	h.shutdownCh = make(chan struct{})
	stop := h.shutdownCh
	h.mu.Unlock()

	go h.run(ctx, stop)
	return nil
}

// Stop shuts the hub down.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrNotRunning
	}
	h.running = false
	close(h.shutdownCh)
	return nil
}

func (h *Hub) run(ctx context.Context, stop <-chan struct{}) {
	defer log.Println("hub stopped")
	for {
		select {
		case ev := <-h.events:
			switch ev.kind {
			case evConnect:
				h.addSession(ev.sess)
			case evFrame:
				h.dispatch(ev.sess, ev.data)
			case evDisconnect:
				h.dropSession(ev.sess)
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) enqueue(ev event) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrNotRunning
	}
	stop := h.shutdownCh
	h.mu.RUnlock()

	select {
	case h.events <- ev:
		return nil
	case <-stop:
		return ErrNotRunning
	}
}

// Connect registers a freshly accepted client and returns its session.
func (h *Hub) Connect(c registry.Client) (*registry.Session, error) {
	sess := registry.NewSession(uuid.NewString(), c)
	if err := h.enqueue(event{kind: evConnect, sess: sess}); err != nil {
		return nil, err
	}
	return sess, nil
}

// Inbound hands one raw frame from a connection to the dispatcher. Frames
// are processed in arrival order per session.
func (h *Hub) Inbound(sess *registry.Session, data []byte) error {
	return h.enqueue(event{kind: evFrame, sess: sess, data: data})
}

// Disconnect removes a session. Safe to call more than once.
func (h *Hub) Disconnect(sess *registry.Session) error {
	return h.enqueue(event{kind: evDisconnect, sess: sess})
}

func (h *Hub) addSession(sess *registry.Session) {
	h.registry.Add(sess)
	log.Printf("connected %s (%s)", sess.ID, sess.Addr())
}

func (h *Hub) dropSession(sess *registry.Session) {
	if !h.registry.Remove(sess) {
		return
	}
	log.Printf("disconnected %s (%s)", sess.ID, sess.Addr())
	if sess.Joined() {
		h.broadcast(proto.NewOnlineRemove(sess.Nick), sess.Channel)
	}
}

// dispatch runs the per-frame pipeline: blocked-identity probe, base frame
// cost, size ceiling, parse, then the command handler. Unknown commands are
// ignored; malformed frames are dropped and logged.
func (h *Hub) dispatch(sess *registry.Session, data []byte) {
	addr := sess.Addr()
	if h.police.Frisk(addr, 0) {
		h.send(proto.NewWarn("Your IP is being rate-limited or blocked."), sess)
		return
	}
	h.police.Frisk(addr, 1)

	if len(data) > proto.MaxFrameSize {
		return
	}
	frame, err := proto.Decode(data)
	if err != nil {
		log.Printf("dropping malformed frame from %s: %v", addr, err)
		return
	}

	switch frame.Cmd {
	case proto.CmdPing:
		// Keepalive only.
	case proto.CmdJoin:
		h.join(sess, frame)
	case proto.CmdChat:
		h.chat(sess, frame)
	case proto.CmdInvite:
		h.invite(sess, frame)
	case proto.CmdStats:
		h.stats(sess)
	case proto.CmdBan:
		h.ban(sess, frame)
	case proto.CmdUnban:
		h.unban(sess, frame)
	case proto.CmdListUsers:
		h.listUsers(sess)
	case proto.CmdBroadcast:
		h.broadcastAll(sess, frame)
	}
}

// send delivers one frame to one session, stamping the delivery time.
// Best-effort: a write failure is logged and absorbed.
func (h *Hub) send(frame proto.Frame, sess *registry.Session) {
	frame.Stamp(h.now().UnixMilli())
	if err := sess.Send(frame); err != nil {
		log.Printf("send to %s failed: %v", sess.ID, err)
	}
}

// broadcast delivers a frame to every session in channel, or to every
// joined session when channel is empty. Per-recipient failures do not stop
// the fan-out.
func (h *Hub) broadcast(frame proto.Frame, channel string) {
	var recipients []*registry.Session
	if channel == "" {
		recipients = h.registry.Joined()
	} else {
		recipients = h.registry.InChannel(channel)
	}
	for _, sess := range recipients {
		h.send(frame, sess)
	}
}
