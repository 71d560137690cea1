package ring

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Set is an unordered set of slot ids.
type Set map[int]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...int) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Add(id int) {
	s[id] = struct{}{}
}

func (s Set) Remove(id int) {
	delete(s, id)
}

func (s Set) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy; a nil set clones to an empty one.
func (s Set) Clone() Set {
	clone := make(Set, len(s))
	for id := range s {
		clone[id] = struct{}{}
	}
	return clone
}

// Sorted returns the ids in ascending order.
func (s Set) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Equal reports whether both sets hold the same ids.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// State is the durable state of the history leg. Off only describes the
// slot cleared by the most recent Advance; it is not carried forward.
type State struct {
	On  Set
	Off Set
}

// Empty returns the cold-start state.
func Empty() State {
	return State{On: NewSet(), Off: NewSet()}
}

// Within drops ids that are not part of r and returns them.
func (s State) Within(r Ring) (State, []int) {
	var dropped []int
	out := Empty()
	for _, id := range s.On.Sorted() {
		if r.Contains(id) {
			out.On.Add(id)
		} else {
			dropped = append(dropped, id)
		}
	}
	for _, id := range s.Off.Sorted() {
		if r.Contains(id) {
			out.Off.Add(id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return out, dropped
}

// String renders the state in its line form, e.g. "on=12,13;off=14".
func (s State) String() string {
	return "on=" + joinIDs(s.On.Sorted()) + ";off=" + joinIDs(s.Off.Sorted())
}

// Parse reads the line form produced by String. Whitespace around fields is
// tolerated; anything else is an error.
func Parse(text string) (State, error) {
	fields := strings.Split(strings.TrimSpace(text), ";")
	if len(fields) != 2 {
		return State{}, fmt.Errorf("state %q: expected 2 fields, got %d", text, len(fields))
	}

	state := Empty()
	seen := make(map[string]bool, 2)
	for _, field := range fields {
		kv := strings.SplitN(strings.TrimSpace(field), "=", 2)
		if len(kv) != 2 {
			return State{}, fmt.Errorf("state %q: invalid field %q", text, field)
		}
		key := strings.TrimSpace(kv[0])
		if seen[key] {
			return State{}, fmt.Errorf("state %q: duplicate key %q", text, key)
		}
		seen[key] = true

		ids, err := parseIDs(kv[1], ",")
		if err != nil {
			return State{}, fmt.Errorf("state %q: %w", text, err)
		}
		switch key {
		case "on":
			state.On = NewSet(ids...)
		case "off":
			state.Off = NewSet(ids...)
		default:
			return State{}, fmt.Errorf("state %q: unknown key %q", text, key)
		}
	}
	return state, nil
}

// legacyPattern matches lines such as "on = {12, 13}, off = {14}" and "on = set(), off = {16}".
var legacyPattern = regexp.MustCompile(`^on\s*=\s*(\{[0-9,\s]*\}|set\(\))\s*,\s*off\s*=\s*(\{[0-9,\s]*\}|set\(\))$`)

// ParseLegacy reads the set-literal form written by earlier releases.
// The text is matched against a fixed pattern and never evaluated.
func ParseLegacy(text string) (State, error) {
	m := legacyPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return State{}, fmt.Errorf("legacy state %q: unrecognized form", text)
	}
	on, err := parseLiteral(m[1])
	if err != nil {
		return State{}, fmt.Errorf("legacy state %q: %w", text, err)
	}
	off, err := parseLiteral(m[2])
	if err != nil {
		return State{}, fmt.Errorf("legacy state %q: %w", text, err)
	}
	return State{On: NewSet(on...), Off: NewSet(off...)}, nil
}

func parseLiteral(lit string) ([]int, error) {
	if lit == "set()" {
		return nil, nil
	}
	return parseIDs(strings.TrimSuffix(strings.TrimPrefix(lit, "{"), "}"), ",")
}

func parseIDs(text, sep string) ([]int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, sep)
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid slot id %q", part)
		}
		if id < 0 {
			return nil, fmt.Errorf("negative slot id %d", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
