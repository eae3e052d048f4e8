package service

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	idPrefix       = "TR"
	suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLength   = 6
)

// IDGenerator produces claim identifiers of the form TR-20250101-AB12CD:
// sortable by creation date, with a base-36 random suffix. Collisions within a
// day are astronomically unlikely, but the creating service still retries
// against the store.
type IDGenerator struct {
	loc   *time.Location
	nowFn func() time.Time
}

// NewIDGenerator builds a generator that dates IDs in the given timezone.
func NewIDGenerator(loc *time.Location) *IDGenerator {
	return &IDGenerator{
		loc:   loc,
		nowFn: time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (g *IDGenerator) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		g.nowFn = nowFn
	}
}

// Generate returns a fresh claim ID.
func (g *IDGenerator) Generate() string {
	date := g.nowFn().In(g.loc).Format("20060102")

	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform's entropy source is gone;
		// nothing sensible to degrade to.
		panic(fmt.Sprintf("read random suffix: %v", err))
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}

	return fmt.Sprintf("%s-%s-%s", idPrefix, date, buf)
}
