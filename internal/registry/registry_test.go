package registry

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

// stubClient satisfies Client for registry tests; no transport involved.
type stubClient struct {
	addr string
}

func (c *stubClient) Send(v any) error { return nil }
func (c *stubClient) Addr() string     { return c.addr }
func (c *stubClient) Close() error     { return nil }

func joined(r *Registry, id, addr, channel, nick string) *Session {
	s := NewSession(id, &stubClient{addr: addr})
	r.Add(s)
	r.SetJoined(s, channel, nick, "")
	return s
}

func TestAddRemove(t *testing.T) {
	r := New()
	s := NewSession("s1", &stubClient{addr: "1.1.1.1"})

	r.Add(s)
	if r.Len() != 1 {
		t.Fatalf("Len = %d after Add, want 1", r.Len())
	}
	if !r.Remove(s) {
		t.Error("Remove returned false for a present session")
	}
	if r.Remove(s) {
		t.Error("second Remove returned true; must be idempotent")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after Remove, want 0", r.Len())
	}
}

func TestInChannelKeepsJoinOrder(t *testing.T) {
	r := New()
	joined(r, "s1", "1.1.1.1", "prog", "alice")
	joined(r, "s2", "2.2.2.2", "prog", "bob")
	joined(r, "s3", "3.3.3.3", "misc", "carol")
	r.Add(NewSession("s4", &stubClient{addr: "4.4.4.4"})) // never joined

	var nicks []string
	for _, s := range r.InChannel("prog") {
		nicks = append(nicks, s.Nick)
	}
	if !reflect.DeepEqual(nicks, []string{"alice", "bob"}) {
		t.Errorf("InChannel(prog) nicks = %v, want [alice bob]", nicks)
	}
	if got := len(r.Joined()); got != 3 {
		t.Errorf("Joined() returned %d sessions, want 3", got)
	}
}

func TestFindNickIsCaseInsensitive(t *testing.T) {
	r := New()
	s := joined(r, "s1", "1.1.1.1", "prog", "Alice")

	testCases := []struct {
		channel string
		nick    string
		want    *Session
	}{
		{"prog", "Alice", s},
		{"prog", "alice", s},
		{"prog", "ALICE", s},
		{"prog", "bob", nil},
		{"misc", "Alice", nil},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s/%s", tc.channel, tc.nick), func(t *testing.T) {
			if got := r.FindNick(tc.channel, tc.nick); got != tc.want {
				t.Errorf("FindNick(%q, %q) = %v, want %v", tc.channel, tc.nick, got, tc.want)
			}
		})
	}
}

func TestStatsCountsDistinct(t *testing.T) {
	r := New()
	joined(r, "s1", "1.1.1.1", "prog", "alice")
	joined(r, "s2", "1.1.1.1", "misc", "alice2") // same address, second channel
	joined(r, "s3", "2.2.2.2", "prog", "bob")
	r.Add(NewSession("s4", &stubClient{addr: "3.3.3.3"})) // unjoined, not counted

	addrs, channels := r.Stats()
	if addrs != 2 || channels != 2 {
		t.Errorf("Stats() = (%d, %d), want (2, 2)", addrs, channels)
	}
}

// TestStatsDuringJoins reads registry state while sessions are joining on
// another goroutine. Meaningful under -race: join state must be written
// through SetJoined so these reads never see a torn session.
func TestStatsDuringJoins(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s := NewSession(fmt.Sprintf("s%d", i), &stubClient{addr: fmt.Sprintf("10.0.0.%d", i%200)})
			r.Add(s)
			r.SetJoined(s, "prog", fmt.Sprintf("nick%d", i), "")
		}
	}()
	for i := 0; i < 500; i++ {
		r.Stats()
		r.Len()
		r.ChannelListing()
	}
	wg.Wait()

	addrs, channels := r.Stats()
	if addrs != 200 || channels != 1 {
		t.Errorf("Stats() = (%d, %d), want (200, 1)", addrs, channels)
	}
}

func TestChannelListing(t *testing.T) {
	r := New()
	joined(r, "s1", "1.1.1.1", "prog", "alice")
	joined(r, "s2", "2.2.2.2", "misc", "bob")
	joined(r, "s3", "3.3.3.3", "prog", "carol")

	want := []ChannelUsers{
		{Channel: "prog", Nicks: []string{"alice", "carol"}},
		{Channel: "misc", Nicks: []string{"bob"}},
	}
	if got := r.ChannelListing(); !reflect.DeepEqual(got, want) {
		t.Errorf("ChannelListing() = %v, want %v", got, want)
	}
}
