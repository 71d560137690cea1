package ping

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks failures of the probing mechanism itself, as opposed
// to an unreachable host. Callers treat it as fatal.
var ErrUnavailable = errors.New("probe unavailable")

// UnavailableError wraps the cause of a probe mechanism failure.
type UnavailableError struct {
	Method string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s probe unavailable: %v", e.Method, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Outcome captures the result of one probe of count echo requests.
type Outcome struct {
	Attempted  int
	Received   int
	RTT        time.Duration
	Diagnostic string
}

// Succeeded reports zero packet loss.
func (o Outcome) Succeeded() bool {
	return o.Attempted > 0 && o.Received >= o.Attempted
}

// LossPercent returns the share of lost packets in percent.
func (o Outcome) LossPercent() float64 {
	if o.Attempted <= 0 {
		return 100
	}
	lost := o.Attempted - o.Received
	if lost < 0 {
		lost = 0
	}
	return float64(lost) * 100 / float64(o.Attempted)
}

func summary(attempted, received int) string {
	o := Outcome{Attempted: attempted, Received: received}
	return fmt.Sprintf("%d packets transmitted, %d received, %g%% packet loss", attempted, received, o.LossPercent())
}

// Prober sends count echo requests to addr and reports how many came back.
// A non-nil error means the probe could not run at all.
type Prober interface {
	Probe(ctx context.Context, addr string, count int) (Outcome, error)
}
