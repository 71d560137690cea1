package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doridoridoriand/glowping/internal/ring"
)

// Markers introduce the ring state on a log line. The second one appears in
// diagnostic lines written by earlier releases.
const (
	MarkerExit = "exit state:"
	MarkerPrev = "prev_state:"
)

var (
	// ErrNoState is returned when a line carries no state marker.
	ErrNoState = errors.New("no state marker")
	// ErrEmptyLog is returned when the log holds no non-empty line.
	ErrEmptyLog = errors.New("empty state log")
)

// Store loads the ring state left by the previous run and persists the
// state of the current one.
type Store interface {
	// Load never fails: a missing or unreadable state is reported through
	// the logger and recovered as the empty state.
	Load() ring.State
	Save(s ring.State) error
	Close() error
}

// FormatLine renders a state line as it is appended to the log.
func FormatLine(at time.Time, s ring.State) string {
	return at.Format(time.RFC3339) + " " + MarkerExit + " " + s.String()
}

// ParseLine extracts the state from a log line. The text after the last
// marker is read with the strict codec first and the legacy set-literal
// form second.
func ParseLine(line string) (ring.State, error) {
	payload, ok := afterMarker(line)
	if !ok {
		return ring.State{}, ErrNoState
	}
	s, err := ring.Parse(payload)
	if err == nil {
		return s, nil
	}
	legacy, legacyErr := ring.ParseLegacy(payload)
	if legacyErr == nil {
		return legacy, nil
	}
	return ring.State{}, fmt.Errorf("parse state line: %w", err)
}

func afterMarker(line string) (string, bool) {
	idx, width := -1, 0
	for _, marker := range []string{MarkerExit, MarkerPrev} {
		if i := strings.LastIndex(line, marker); i > idx {
			idx, width = i, len(marker)
		}
	}
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+width:]), true
}
