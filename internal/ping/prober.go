package ping

import (
	"fmt"
	"time"
)

// Probe methods accepted by New.
const (
	MethodAuto = "auto"
	MethodICMP = "icmp"
	MethodExec = "exec"
)

// New builds the prober for method. "auto" tries raw ICMP and falls back to
// the ping command when raw sockets are not permitted.
func New(method, command string, timeout time.Duration) (Prober, error) {
	switch method {
	case MethodICMP:
		return NewICMPProber(timeout), nil
	case MethodExec:
		return NewExternalProber(command, timeout), nil
	case MethodAuto, "":
		return NewFallbackProber(NewICMPProber(timeout), NewExternalProber(command, timeout)), nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", method)
	}
}
