package led

import (
	"context"
	"fmt"
	"time"
)

// Op is the kind of a script step.
type Op int

const (
	OpSet Op = iota
	OpSetGroup
	OpHold
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpSetGroup:
		return "set-group"
	case OpHold:
		return "hold"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Step is one display instruction. Holds are explicit steps so that pacing
// can be skipped or accelerated by whoever plays the script.
type Step struct {
	Op         Op
	Slot       int
	Group      Group
	Brightness uint8
	Hold       time.Duration
}

func (s Step) String() string {
	switch s.Op {
	case OpSet:
		return fmt.Sprintf("set %d=%d", s.Slot, s.Brightness)
	case OpSetGroup:
		return fmt.Sprintf("set-group %s=%d", s.Group.Name, s.Brightness)
	default:
		return fmt.Sprintf("hold %s", s.Hold)
	}
}

// Script is an ordered list of steps.
type Script []Step

// Set returns a single-slot step.
func Set(slot int, brightness uint8) Step {
	return Step{Op: OpSet, Slot: slot, Brightness: brightness}
}

// SetGroup returns a whole-leg step.
func SetGroup(group Group, brightness uint8) Step {
	return Step{Op: OpSetGroup, Group: group, Brightness: brightness}
}

// Hold returns a pause step.
func Hold(d time.Duration) Step {
	return Step{Op: OpHold, Hold: d}
}

// Blink alternates slot between brightness and off times, holding half on
// each phase. The slot ends off.
func Blink(slot int, brightness uint8, times int, half time.Duration) Script {
	script := make(Script, 0, times*4)
	for i := 0; i < times; i++ {
		script = append(script, Set(slot, brightness), Hold(half), Set(slot, Off), Hold(half))
	}
	return script
}

// BlinkGroup is Blink for a whole leg.
func BlinkGroup(group Group, brightness uint8, times int, half time.Duration) Script {
	script := make(Script, 0, times*4)
	for i := 0; i < times; i++ {
		script = append(script, SetGroup(group, brightness), Hold(half), SetGroup(group, Off), Hold(half))
	}
	return script
}

// Then appends steps and returns the extended script.
func (s Script) Then(steps ...Step) Script {
	return append(s, steps...)
}

// Append concatenates scripts.
func (s Script) Append(other Script) Script {
	return append(s, other...)
}

// Duration is the sum of all holds.
func (s Script) Duration() time.Duration {
	var total time.Duration
	for _, step := range s {
		if step.Op == OpHold {
			total += step.Hold
		}
	}
	return total
}

// Waiter paces holds; clockwork.Clock satisfies it.
type Waiter interface {
	After(d time.Duration) <-chan time.Time
}

// Player executes scripts against a driver.
type Player struct {
	driver Driver
	clock  Waiter
	fast   bool
}

// NewPlayer returns a player. With fast set every hold is skipped.
func NewPlayer(driver Driver, clock Waiter, fast bool) *Player {
	return &Player{driver: driver, clock: clock, fast: fast}
}

// Play runs the script step by step. It stops at the first driver error or
// when ctx is done, including in the middle of a hold.
func (p *Player) Play(ctx context.Context, script Script) error {
	for i, step := range script {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch step.Op {
		case OpSet:
			err = p.driver.Set(step.Slot, step.Brightness)
		case OpSetGroup:
			err = p.driver.SetGroup(step.Group, step.Brightness)
		case OpHold:
			if !p.fast && step.Hold > 0 {
				select {
				case <-p.clock.After(step.Hold):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		default:
			err = fmt.Errorf("unknown op %v", step.Op)
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step, err)
		}
	}
	return nil
}
