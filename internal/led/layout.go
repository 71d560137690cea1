package led

import "fmt"

// Group is one leg of indicators: Size consecutive slot ids starting at Base,
// ordered from the outside of the leg to the inside.
type Group struct {
	Name string
	Base int
	Size int
}

// Slots returns the slot ids from outermost to innermost.
func (g Group) Slots() []int {
	slots := make([]int, g.Size)
	for i := range slots {
		slots[i] = g.Base + i
	}
	return slots
}

// Reversed returns the slot ids from innermost to outermost.
func (g Group) Reversed() []int {
	slots := g.Slots()
	for i, j := 0, len(slots)-1; i < j; i, j = i+1, j-1 {
		slots[i], slots[j] = slots[j], slots[i]
	}
	return slots
}

// Contains reports whether slot belongs to the group.
func (g Group) Contains(slot int) bool {
	return slot >= g.Base && slot < g.Base+g.Size
}

// Index returns the position of slot within the group.
func (g Group) Index(slot int) (int, error) {
	if !g.Contains(slot) {
		return 0, fmt.Errorf("slot %d not in %s leg [%d,%d)", slot, g.Name, g.Base, g.Base+g.Size)
	}
	return slot - g.Base, nil
}

// Layout names the three legs of the display.
type Layout struct {
	Attempt Group
	Outcome Group
	History Group
}

// DefaultLayout is the PiGlow arrangement: slots 0-5, 6-11 and 12-17.
func DefaultLayout() Layout {
	return NewLayout(0, 6, 12, 6)
}

// NewLayout builds a layout of three legs of size slots each.
func NewLayout(attemptBase, outcomeBase, historyBase, size int) Layout {
	return Layout{
		Attempt: Group{Name: "attempt", Base: attemptBase, Size: size},
		Outcome: Group{Name: "outcome", Base: outcomeBase, Size: size},
		History: Group{Name: "history", Base: historyBase, Size: size},
	}
}

// Groups returns the legs in display order.
func (l Layout) Groups() []Group {
	return []Group{l.Attempt, l.Outcome, l.History}
}

// Slots returns every slot id of the layout.
func (l Layout) Slots() []int {
	var slots []int
	for _, g := range l.Groups() {
		slots = append(slots, g.Slots()...)
	}
	return slots
}

// Size is the number of slots across all legs.
func (l Layout) Size() int {
	return l.Attempt.Size + l.Outcome.Size + l.History.Size
}

// GroupOf returns the leg that holds slot.
func (l Layout) GroupOf(slot int) (Group, bool) {
	for _, g := range l.Groups() {
		if g.Contains(slot) {
			return g, true
		}
	}
	return Group{}, false
}

// Validate checks that the legs are non-empty, equally sized and disjoint.
func (l Layout) Validate() error {
	groups := l.Groups()
	for _, g := range groups {
		if g.Size <= 0 {
			return fmt.Errorf("%s leg has no slots", g.Name)
		}
		if g.Base < 0 {
			return fmt.Errorf("%s leg base %d is negative", g.Name, g.Base)
		}
		if g.Size != groups[0].Size {
			return fmt.Errorf("%s leg has %d slots, expected %d", g.Name, g.Size, groups[0].Size)
		}
	}
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			a, b := groups[i], groups[j]
			if a.Base < b.Base+b.Size && b.Base < a.Base+a.Size {
				return fmt.Errorf("%s and %s legs overlap", a.Name, b.Name)
			}
		}
	}
	return nil
}
