// Package police rate-limits identities with a decayed abuse accumulator.
// Each action adds a cost to a per-address score that halves every halflife;
// crossing the threshold blocks the identity until the score decays back
// down. An arrest is a sticky block, immune to decay, cleared only by pardon.
package police

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultHalflife is how long a score takes to halve.
	DefaultHalflife = 30 * time.Second
	// DefaultThreshold is the score at which an identity is blocked.
	DefaultThreshold = 15.0
)

type record struct {
	score    float64
	last     time.Time
	arrested bool
}

// Police tracks one record per identity. Records are created lazily on
// first contact and never expire.
type Police struct {
	mu        sync.Mutex
	records   map[string]*record
	halflife  time.Duration
	threshold float64
	now       func() time.Time
}

func New() *Police {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(now func() time.Time) *Police {
	return &Police{
		records:   make(map[string]*record),
		halflife:  DefaultHalflife,
		threshold: DefaultThreshold,
		now:       now,
	}
}

func (p *Police) record(id string) *record {
	rec, ok := p.records[id]
	if !ok {
		rec = &record{last: p.now()}
		p.records[id] = rec
	}
	return rec
}

// Frisk charges delta against id's score and reports whether the identity
// is currently blocked. An arrested identity is always blocked and its
// score is left untouched. A zero delta is a pure probe: it only decays the
// stored score, so repeated probes can never push an identity over the
// threshold.
func (p *Police) Frisk(id string, delta float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.record(id)
	if rec.arrested {
		return true
	}

	now := p.now()
	elapsed := now.Sub(rec.last)
	rec.score = rec.score*math.Exp2(-elapsed.Seconds()/p.halflife.Seconds()) + delta
	rec.last = now
	return rec.score >= p.threshold
}

// Arrest sets the sticky block on id, creating the record if needed.
func (p *Police) Arrest(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(id).arrested = true
}

// Pardon clears the sticky block on id. Pardoning an unknown identity is a
// no-op.
func (p *Police) Pardon(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.records[id]; ok {
		rec.arrested = false
	}
}

// Arrested reports whether id carries the sticky block.
func (p *Police) Arrested(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	return ok && rec.arrested
}

// Score returns the stored score for id without decaying it. Diagnostic.
func (p *Police) Score(id string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.records[id]; ok {
		return rec.score
	}
	return 0
}

// LoadJail arrests every identity listed in r, one per line. Blank lines
// and lines starting with '#' are skipped. Returns the number arrested.
func (p *Police) LoadJail(r io.Reader) int {
	count := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		p.Arrest(id)
		count++
	}
	return count
}

// LoadJailFile loads a jail file from disk. A missing file is not an
// error: zero identities are loaded.
func (p *Police) LoadJailFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()
	return p.LoadJail(f), nil
}
