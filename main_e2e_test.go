package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/doridoridoriand/glowping/internal/config"
	"github.com/doridoridoriand/glowping/internal/led"
	"github.com/doridoridoriand/glowping/internal/log"
	"github.com/doridoridoriand/glowping/internal/ping"
)

var (
	clean = ping.Outcome{Attempted: 1, Received: 1, RTT: 3 * time.Millisecond}
	lost  = ping.Outcome{Attempted: 1, Received: 0, Diagnostic: "1 packets transmitted, 0 received, 100% packet loss"}
)

// sequenceProber replays outcomes in order and can fail one attempt.
type sequenceProber struct {
	mu       sync.Mutex
	outcomes []ping.Outcome
	failAt   int
	err      error
	calls    int
}

func (p *sequenceProber) Probe(ctx context.Context, addr string, count int) (ping.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if p.err != nil && i == p.failAt {
		return ping.Outcome{}, p.err
	}
	return p.outcomes[i%len(p.outcomes)], nil
}

type harness struct {
	dir      string
	config   string
	stateLog string
	textfile string
	driver   *led.MemoryDriver
	prober   *sequenceProber
	clock    clockwork.FakeClock
}

func newHarness(t *testing.T, outcomes ...ping.Outcome) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		dir:      dir,
		config:   filepath.Join(dir, "glowping.toml"),
		stateLog: filepath.Join(dir, "state", "state.log"),
		textfile: filepath.Join(dir, "glowping.prom"),
		driver:   led.NewMemoryDriver(led.DefaultLayout(), nil),
		prober:   &sequenceProber{outcomes: outcomes},
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 3, 9, 21, 42, 0, 0, time.UTC)),
	}
	cfg := fmt.Sprintf(`target_address = "192.0.2.1"
state_log = %q

[display]
driver = "log"
fast = true

[logging]
level = "error"

[metrics]
textfile = %q
`, h.stateLog, h.textfile)
	if err := os.WriteFile(h.config, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return h
}

func (h *harness) deps() deps {
	return deps{
		clock:     h.clock,
		newProber: func(*config.Config) (ping.Prober, error) { return h.prober, nil },
		newDriver: func(*config.Config, bool, *log.Logger) (led.Driver, error) { return h.driver, nil },
	}
}

func (h *harness) seedState(t *testing.T, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(h.stateLog), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(h.stateLog, []byte(data), 0644); err != nil {
		t.Fatalf("seed state log: %v", err)
	}
}

func (h *harness) readState(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.stateLog)
	if err != nil {
		t.Fatalf("read state log: %v", err)
	}
	return string(data)
}

func (h *harness) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--config", h.config)
	code := execute(args, &stdout, &stderr, h.deps())
	return code, stdout.String(), stderr.String()
}

func TestE2EFiveOfSixCycle(t *testing.T) {
	h := newHarness(t, clean, clean, lost, clean, clean, clean)
	h.seedState(t, "2024-03-09T21:32:00Z exit state: on=16,17;off=14")

	code, _, stderr := h.run(t)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if h.prober.calls != 6 {
		t.Fatalf("expected 6 probes, got %d", h.prober.calls)
	}

	lines := strings.Split(strings.TrimSpace(h.readState(t)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one appended line, got %q", lines)
	}
	if want := "2024-03-09T21:42:00Z exit state: on=12,17;off=16"; lines[1] != want {
		t.Fatalf("state line = %q, want %q", lines[1], want)
	}

	layout := led.DefaultLayout()
	if got := h.driver.Lit(layout.History); fmt.Sprint(got) != "[12 17]" {
		t.Fatalf("history leg lit %v, want [12 17]", got)
	}
	if got := h.driver.Lit(layout.Attempt); len(got) != 6 {
		t.Fatalf("attempt leg should stay lit, got %v", got)
	}
	if got := h.driver.Lit(layout.Outcome); len(got) != 0 {
		t.Fatalf("outcome leg should end dark, got %v", got)
	}
	if !h.driver.Closed() {
		t.Fatalf("driver not closed")
	}

	metricsText, err := os.ReadFile(h.textfile)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	if !strings.Contains(string(metricsText), "glowping_cycle_success 1") {
		t.Fatalf("expected success gauge, got:\n%s", metricsText)
	}
}

func TestE2EFailedCycleLeavesSlotDark(t *testing.T) {
	h := newHarness(t, clean, lost, lost, clean, lost, clean)
	h.seedState(t, "2024-03-09T21:32:00Z exit state: on=13;off=14")

	if code, _, stderr := h.run(t, "run"); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.HasSuffix(h.readState(t), "exit state: on=13;off=16\n") {
		t.Fatalf("unexpected state log:\n%s", h.readState(t))
	}
	if got := h.driver.Lit(led.DefaultLayout().History); fmt.Sprint(got) != "[13]" {
		t.Fatalf("history leg lit %v, want [13]", got)
	}
}

func TestE2EColdStartFromUnreadableLog(t *testing.T) {
	h := newHarness(t, clean)
	h.seedState(t, "rebooted", "prev_state: on = {12, 99")

	if code, _, stderr := h.run(t); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.HasSuffix(h.readState(t), "2024-03-09T21:42:00Z exit state: on=12;off=16\n") {
		t.Fatalf("unexpected state log:\n%s", h.readState(t))
	}
}

func TestE2EFatalProbeFailure(t *testing.T) {
	h := newHarness(t, clean)
	h.prober.failAt = 1
	h.prober.err = &ping.UnavailableError{Method: ping.MethodExec, Err: exec.ErrNotFound}
	seed := "2024-03-09T21:32:00Z exit state: on=16,17;off=14"
	h.seedState(t, seed)

	code, _, stderr := h.run(t)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "probe attempt 1") {
		t.Fatalf("expected probe error on stderr, got %q", stderr)
	}
	if got := h.readState(t); got != seed+"\n" {
		t.Fatalf("state log must not change on abort, got %q", got)
	}
	for _, slot := range led.DefaultLayout().Slots() {
		if b := h.driver.Brightness(slot); b != led.Off {
			t.Fatalf("slot %d left at %d after abort", slot, b)
		}
	}
	metricsText, err := os.ReadFile(h.textfile)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	if !strings.Contains(string(metricsText), "glowping_probe_unavailable_total 1") {
		t.Fatalf("expected unavailable counter, got:\n%s", metricsText)
	}
}

func TestE2EStateCommand(t *testing.T) {
	h := newHarness(t, clean)
	h.seedState(t, "2024-03-09T21:32:00Z exit state: on=16,17;off=14")

	code, stdout, stderr := h.run(t, "state")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if want := h.stateLog + " on=16,17;off=14\n"; stdout != want {
		t.Fatalf("state output = %q, want %q", stdout, want)
	}
	if h.prober.calls != 0 {
		t.Fatalf("state must not probe")
	}
}

func TestE2EClearCommand(t *testing.T) {
	h := newHarness(t, clean)
	if err := h.driver.SetGroup(led.DefaultLayout().History, 32); err != nil {
		t.Fatalf("seed driver: %v", err)
	}

	if code, _, stderr := h.run(t, "clear"); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	audit := h.driver.Audit()
	if audit[len(audit)-1] != "off" {
		t.Fatalf("expected clear to turn everything off, audit %v", audit)
	}
	if len(h.driver.Lit(led.DefaultLayout().History)) != 0 {
		t.Fatalf("history leg still lit")
	}
}

func TestE2EWatchRunsOnBoundariesUntilFatal(t *testing.T) {
	h := newHarness(t, clean)
	h.prober.failAt = 6
	h.prober.err = &ping.UnavailableError{Method: ping.MethodICMP, Err: errors.New("socket: operation not permitted")}

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- execute([]string{"watch", "--config", h.config, "--interval", "10m"}, &stdout, &stderr, h.deps())
	}()

	h.clock.BlockUntil(1)
	h.clock.Advance(8 * time.Minute)
	h.clock.BlockUntil(1)

	if !strings.HasSuffix(h.readState(t), "2024-03-09T21:50:00Z exit state: on=14;off=12\n") {
		t.Fatalf("unexpected state log:\n%s", h.readState(t))
	}
	select {
	case code := <-done:
		t.Fatalf("watch exited early with %d: %s", code, stderr.String())
	default:
	}

	h.clock.Advance(10 * time.Minute)
	select {
	case code := <-done:
		if code != 1 {
			t.Fatalf("expected exit 1 after fatal probe error, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not stop on fatal probe error")
	}
	if !strings.HasSuffix(h.readState(t), "on=14;off=12\n") {
		t.Fatalf("aborted cycle must not append state:\n%s", h.readState(t))
	}
}
