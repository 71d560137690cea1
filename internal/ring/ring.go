package ring

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSlotOutOfRange reports a slot id that does not belong to the ring.
	ErrSlotOutOfRange = errors.New("slot out of ring range")
	// ErrNoAttempts reports a scoring request with no attempts to score.
	ErrNoAttempts = errors.New("no attempts to score")
)

const minRingSize = 3

// Ring is a circular sequence of Size slot ids starting at Base.
type Ring struct {
	Base int
	Size int
}

// New validates and returns a ring. Size must be at least three so that the
// slot two positions behind the target is never the target itself.
func New(base, size int) (Ring, error) {
	if size < minRingSize {
		return Ring{}, fmt.Errorf("ring size %d is below minimum %d", size, minRingSize)
	}
	if base < 0 {
		return Ring{}, fmt.Errorf("ring base %d must not be negative", base)
	}
	return Ring{Base: base, Size: size}, nil
}

// Contains reports whether slot belongs to the ring.
func (r Ring) Contains(slot int) bool {
	return slot >= r.Base && slot < r.Base+r.Size
}

// Slots returns the ring's slot ids in ring order.
func (r Ring) Slots() []int {
	slots := make([]int, r.Size)
	for i := range slots {
		slots[i] = r.Base + i
	}
	return slots
}

// SlotAt maps a wall-clock time onto the ring: minute modulo size, offset by base.
// Cycles run every ten minutes therefore visit each of six slots once an hour.
func (r Ring) SlotAt(now time.Time) int {
	return now.Minute()%r.Size + r.Base
}

// Back returns the slot n positions behind slot in ring order.
func (r Ring) Back(slot, n int) (int, error) {
	if !r.Contains(slot) {
		return 0, fmt.Errorf("%w: slot %d not in [%d,%d)", ErrSlotOutOfRange, slot, r.Base, r.Base+r.Size)
	}
	pos := ((slot-r.Base-n)%r.Size + r.Size) % r.Size
	return pos + r.Base, nil
}

// Advance folds one cycle into the ring state. The target slot is added to On
// when the cycle succeeded, and the slot two positions behind the target is
// cleared, so at most the two most recent targets stay lit.
func (r Ring) Advance(prev State, slot int, success bool) (State, error) {
	twoBack, err := r.Back(slot, 2)
	if err != nil {
		return State{}, err
	}

	on := prev.On.Clone()
	if success {
		on.Add(slot)
	}
	on.Remove(twoBack)

	return State{On: on, Off: NewSet(twoBack)}, nil
}

// Score returns the fraction of successful results and whether it reaches threshold.
func Score(results []bool, threshold float64) (float64, bool, error) {
	if len(results) == 0 {
		return 0, false, ErrNoAttempts
	}
	hits := 0
	for _, ok := range results {
		if ok {
			hits++
		}
	}
	hitRate := float64(hits) / float64(len(results))
	return hitRate, hitRate >= threshold, nil
}
