package ping

import (
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
)

// FallbackProber delegates to primary, then secondary when permission errors occur.
type FallbackProber struct {
	primary   Prober
	secondary Prober
}

// NewFallbackProber wraps primary with a secondary fallback.
func NewFallbackProber(primary, secondary Prober) *FallbackProber {
	return &FallbackProber{primary: primary, secondary: secondary}
}

// Probe uses the primary prober and falls back on permission-related errors.
func (p *FallbackProber) Probe(ctx context.Context, addr string, count int) (Outcome, error) {
	outcome, err := p.primary.Probe(ctx, addr, count)
	if err == nil || !isPermissionError(err) {
		return outcome, err
	}
	return p.secondary.Probe(ctx, addr, count)
}

func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "operation not permitted") || strings.Contains(msg, "permission denied")
}
