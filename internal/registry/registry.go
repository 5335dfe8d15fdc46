// Package registry tracks the live set of connected sessions and answers
// the channel-scoped queries the rest of the server is built on.
package registry

import (
	"strings"
	"sync"
)

// Client is the transport-side handle for one connection. Send is
// best-effort: a failed write is the caller's to absorb, never fatal.
type Client interface {
	Send(v any) error
	Addr() string
	Close() error
}

// Session is the server-side state of one connection. Channel, Nick, and
// Trip are empty until a successful join and are set at most once, via
// Registry.SetJoined. Writing them under the registry lock is what lets
// registry queries read join state from outside the hub goroutine.
type Session struct {
	Client
	ID      string
	Channel string
	Nick    string
	Trip    string
}

func NewSession(id string, c Client) *Session {
	return &Session{Client: c, ID: id}
}

// Joined reports whether the session has joined a channel.
func (s *Session) Joined() bool { return s.Channel != "" }

// ChannelUsers is one channel and its members, in join order.
type ChannelUsers struct {
	Channel string
	Nicks   []string
}

// Registry is the set of all live sessions, kept in connection order so
// nick listings are deterministic. Invariant: among joined sessions, no two
// in the same channel have case-insensitively equal nicks (the hub's
// serialized join handling enforces it).
type Registry struct {
	mu       sync.RWMutex
	sessions []*Session
}

func New() *Registry {
	return &Registry{}
}

// Add inserts a freshly accepted session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

// Remove deletes the session and reports whether it was present. Idempotent.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.sessions {
		if have == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// SetJoined records a session's join. The write happens under the registry
// lock so a concurrent Stats or listing never observes a torn session.
func (r *Registry) SetJoined(s *Session, channel, nick, trip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Channel = channel
	s.Nick = nick
	s.Trip = trip
}

// Len returns the number of live sessions, joined or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// InChannel returns the joined sessions of a channel, in join order.
func (r *Registry) InChannel(channel string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Channel == channel {
			out = append(out, s)
		}
	}
	return out
}

// Joined returns every session that has joined a channel.
func (r *Registry) Joined() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Joined() {
			out = append(out, s)
		}
	}
	return out
}

// FindNick returns the session holding nick in channel, matching
// case-insensitively, or nil.
func (r *Registry) FindNick(channel, nick string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Channel == channel && strings.EqualFold(s.Nick, nick) {
			return s
		}
	}
	return nil
}

// Stats counts distinct addresses and distinct channels among joined
// sessions.
func (r *Registry) Stats() (addrs, channels int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrSet := make(map[string]struct{})
	channelSet := make(map[string]struct{})
	for _, s := range r.sessions {
		if !s.Joined() {
			continue
		}
		addrSet[s.Addr()] = struct{}{}
		channelSet[s.Channel] = struct{}{}
	}
	return len(addrSet), len(channelSet)
}

// ChannelListing groups joined sessions' nicks by channel, channels in
// first-join order.
func (r *Registry) ChannelListing() []ChannelUsers {
	r.mu.RLock()
	defer r.mu.RUnlock()
	index := make(map[string]int)
	var out []ChannelUsers
	for _, s := range r.sessions {
		if !s.Joined() {
			continue
		}
		i, ok := index[s.Channel]
		if !ok {
			i = len(out)
			index[s.Channel] = i
			out = append(out, ChannelUsers{Channel: s.Channel})
		}
		out[i].Nicks = append(out[i].Nicks, s.Nick)
	}
	return out
}
