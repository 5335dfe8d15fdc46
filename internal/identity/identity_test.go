package identity

import (
	"strings"
	"testing"
)

func TestValidNick(t *testing.T) {
	testCases := []struct {
		name  string
		nick  string
		valid bool
	}{
		{"simple", "alice", true},
		{"digits and underscore", "bob_42", true},
		{"single char", "x", true},
		{"max length", strings.Repeat("a", 24), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 25), false},
		{"hash", "al#ice", false},
		{"space", "al ice", false},
		{"dash", "al-ice", false},
		{"unicode", "ålice", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidNick(tc.nick); got != tc.valid {
				t.Errorf("ValidNick(%q) = %v, want %v", tc.nick, got, tc.valid)
			}
		})
	}
}

func TestSplitNick(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		nick     string
		password string
	}{
		{"plain nick", "alice", "alice", ""},
		{"nick with password", "alice#secret", "alice", "secret"},
		{"only first hash splits", "alice#se#cret", "alice", "se#cret"},
		{"whitespace trimmed from nick", "  alice \t#secret", "alice", "secret"},
		{"empty password kept empty", "alice#", "alice", ""},
		{"empty input", "", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			nick, password := SplitNick(tc.raw)
			if nick != tc.nick || password != tc.password {
				t.Errorf("SplitNick(%q) = (%q, %q), want (%q, %q)",
					tc.raw, nick, password, tc.nick, tc.password)
			}
		})
	}
}

func TestTrip(t *testing.T) {
	trip := Trip("secret", "salt")

	if len(trip) != tripLen {
		t.Errorf("trip %q has length %d, want %d", trip, len(trip), tripLen)
	}
	if again := Trip("secret", "salt"); again != trip {
		t.Errorf("same password produced different trips: %q vs %q", trip, again)
	}
	if other := Trip("secret2", "salt"); other == trip {
		t.Errorf("different passwords produced the same trip %q", trip)
	}
	if other := Trip("secret", "salt2"); other == trip {
		t.Errorf("different salts produced the same trip %q", trip)
	}
}

func TestResolverRank(t *testing.T) {
	modTrip := Trip("modpass", "salt")
	r := NewResolver("admin", "hunter2", []string{modTrip})

	testCases := []struct {
		name string
		nick string
		trip string
		want Rank
	}{
		{"admin nick", "admin", "", RankAdmin},
		{"moderator trip", "carol", modTrip, RankModerator},
		{"plain user", "dave", "", RankNone},
		{"unknown trip", "dave", "AAAAAA", RankNone},
		{"admin nick is case sensitive", "Admin", "", RankNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Rank(tc.nick, tc.trip); got != tc.want {
				t.Errorf("Rank(%q, %q) = %v, want %v", tc.nick, tc.trip, got, tc.want)
			}
		})
	}
}

func TestAdminJoin(t *testing.T) {
	r := NewResolver("admin", "hunter2", nil)

	if !r.AdminJoin("hunter2") {
		t.Error("correct password rejected")
	}
	if r.AdminJoin("wrong") {
		t.Error("wrong password accepted")
	}
	if r.AdminJoin("") {
		t.Error("absent password accepted")
	}

	// An empty configured password must disable admin login, not open it up.
	open := NewResolver("admin", "", nil)
	if open.AdminJoin("") {
		t.Error("empty configured password granted admin login")
	}
}

func TestRankOrdering(t *testing.T) {
	if !(RankNone < RankModerator && RankModerator < RankAdmin) {
		t.Error("rank ordering broken: admin must outrank moderator outranks none")
	}
}
