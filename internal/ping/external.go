package ping

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var (
	timePattern     = regexp.MustCompile(`time=([0-9.]+)\s*ms`)
	countsPattern   = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)
	zeroLossPattern = regexp.MustCompile(`(?:^|[^0-9.])0(?:\.0+)?% packet loss`)

	// Resolver failures are about the target, not the probing mechanism.
	unknownHostPattern = regexp.MustCompile(`(?i)unknown host|name or service not known|cannot resolve|temporary failure in name resolution|no address associated`)
)

// ExternalProber invokes the system ping command for environments without raw socket access.
type ExternalProber struct {
	command string
	timeout time.Duration
}

// NewExternalProber returns a prober that shells out to command (usually "ping").
func NewExternalProber(command string, timeout time.Duration) *ExternalProber {
	if command == "" {
		command = "ping"
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ExternalProber{command: command, timeout: timeout}
}

// Probe runs the ping command and parses the packet counts from its summary.
// A non-zero exit with a summary, or with an unresolvable target, is a
// reachability failure. Failing to start the command, or a non-zero exit
// without any summary, is an UnavailableError.
func (p *ExternalProber) Probe(ctx context.Context, addr string, count int) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	cmd := exec.CommandContext(ctx, p.command, pingArgs(addr, count, p.timeout)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Outcome{}, &UnavailableError{Method: MethodExec, Err: err}
		}
		if !countsPattern.Match(out) && !unknownHostPattern.Match(out) {
			return Outcome{}, &UnavailableError{
				Method: MethodExec,
				Err:    fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))),
			}
		}
	}
	return parseOutcome(out, count), nil
}

func pingArgs(addr string, count int, timeout time.Duration) []string {
	c := strconv.Itoa(count)
	switch runtime.GOOS {
	case "darwin":
		timeoutMs := maxInt(100, int(timeout.Milliseconds()))
		return []string{"-n", "-c", c, "-W", strconv.Itoa(timeoutMs), addr}
	default:
		timeoutSec := maxInt(1, int(timeout.Seconds()+0.5))
		return []string{"-n", "-c", c, "-W", strconv.Itoa(timeoutSec), addr}
	}
}

// parseOutcome reads the summary line of ping output. When the counts are
// missing, the "0% packet loss" marker decides success.
func parseOutcome(output []byte, count int) Outcome {
	outcome := Outcome{Attempted: count, Diagnostic: string(output)}
	if m := countsPattern.FindSubmatch(output); len(m) == 3 {
		attempted, errA := strconv.Atoi(string(m[1]))
		received, errR := strconv.Atoi(string(m[2]))
		if errA == nil && errR == nil {
			outcome.Attempted = attempted
			outcome.Received = received
		}
	} else if zeroLossPattern.Match(output) {
		outcome.Received = count
	}
	if outcome.Received > 0 {
		outcome.RTT = parseRTT(output)
	}
	return outcome
}

func parseRTT(output []byte) time.Duration {
	matches := timePattern.FindSubmatch(output)
	if len(matches) < 2 {
		return 0
	}
	value, err := strconv.ParseFloat(string(matches[1]), 64)
	if err != nil {
		return 0
	}
	return time.Duration(value * float64(time.Millisecond))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
