package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relaychat/internal/registry"
)

type nopRelay struct{}

func (nopRelay) Connect(c registry.Client) (*registry.Session, error) {
	return registry.NewSession("test", c), nil
}
func (nopRelay) Inbound(sess *registry.Session, data []byte) error { return nil }
func (nopRelay) Disconnect(sess *registry.Session) error           { return nil }

func TestClientAddr(t *testing.T) {
	testCases := []struct {
		name           string
		remoteAddr     string
		forwardedFor   string
		trustForwarded bool
		want           string
	}{
		{"plain peer", "10.0.0.1:52412", "", false, "10.0.0.1"},
		{"header ignored when untrusted", "10.0.0.1:52412", "9.9.9.9", false, "10.0.0.1"},
		{"trusted header", "10.0.0.1:52412", "9.9.9.9", true, "9.9.9.9"},
		{"trusted header chain keeps first hop", "10.0.0.1:52412", "9.9.9.9, 8.8.8.8", true, "9.9.9.9"},
		{"trusted but absent header", "10.0.0.1:52412", "", true, "10.0.0.1"},
		{"peer without port kept as is", "10.0.0.1", "", false, "10.0.0.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwardedFor != "" {
				r.Header.Set("X-Forwarded-For", tc.forwardedFor)
			}
			if got := clientAddr(r, tc.trustForwarded); got != tc.want {
				t.Errorf("clientAddr = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAllowUpgradeThrottlesPerAddress(t *testing.T) {
	h := NewHandler(nopRelay{}, Options{UpgradesPerSec: 0.001, UpgradeBurst: 2})

	if !h.allowUpgrade("1.1.1.1") || !h.allowUpgrade("1.1.1.1") {
		t.Fatal("burst upgrades rejected")
	}
	if h.allowUpgrade("1.1.1.1") {
		t.Error("upgrade beyond the burst allowed")
	}
	// Other addresses have their own bucket.
	if !h.allowUpgrade("2.2.2.2") {
		t.Error("fresh address rejected")
	}
}

func TestIdleLimitersEvicted(t *testing.T) {
	h := NewHandler(nopRelay{}, Options{UpgradesPerSec: 0.001, UpgradeBurst: 1})
	now := time.Unix(1700000000, 0)
	h.now = func() time.Time { return now }

	if !h.allowUpgrade("1.1.1.1") {
		t.Fatal("first upgrade rejected")
	}
	if h.allowUpgrade("1.1.1.1") {
		t.Fatal("upgrade beyond the burst allowed")
	}

	// Long enough idle that the next sweep drops the address.
	now = now.Add(limiterIdleAfter + limiterSweepEvery)
	if !h.allowUpgrade("2.2.2.2") {
		t.Fatal("fresh address rejected")
	}

	h.mu.Lock()
	_, stale := h.limiters["1.1.1.1"]
	size := len(h.limiters)
	h.mu.Unlock()
	if stale {
		t.Error("idle limiter survived the sweep")
	}
	if size != 1 {
		t.Errorf("limiter map holds %d entries after the sweep, want 1", size)
	}

	// An evicted address starts over with a full bucket.
	if !h.allowUpgrade("1.1.1.1") {
		t.Error("evicted address did not get a fresh bucket")
	}
}

func TestUpgradeRejectedWhenThrottled(t *testing.T) {
	h := NewHandler(nopRelay{}, Options{UpgradesPerSec: 0.001, UpgradeBurst: 1})

	first := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "1.1.1.1:1000"
	// Not a real websocket handshake; the upgrader fails after the limiter
	// passes, which is fine for this test.
	h.ServeWS(first, r)

	second := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r2.RemoteAddr = "1.1.1.1:1001"
	h.ServeWS(second, r2)

	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second upgrade status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}
