package ring

import "testing"

func TestStateStringRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state State
		line  string
	}{
		{"both sets", State{On: NewSet(13, 12), Off: NewSet(14)}, "on=12,13;off=14"},
		{"empty on", State{On: NewSet(), Off: NewSet(16)}, "on=;off=16"},
		{"empty", Empty(), "on=;off="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.line {
				t.Fatalf("expected %q, got %q", tt.line, got)
			}
			parsed, err := Parse(tt.line)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !parsed.On.Equal(tt.state.On) || !parsed.Off.Equal(tt.state.Off) {
				t.Fatalf("expected %s, got %s", tt.state, parsed)
			}
		})
	}
}

func TestParseToleratesWhitespace(t *testing.T) {
	state, err := Parse("  on = 12, 13 ; off = 14 ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !state.On.Equal(NewSet(12, 13)) || !state.Off.Equal(NewSet(14)) {
		t.Fatalf("unexpected state %s", state)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"on=12",
		"on=12;off=14;extra=1",
		"on=12;on=13",
		"on=a;off=14",
		"on=-1;off=14",
		"lit=12;off=14",
		"__import__('os').system('true')",
		"{'on': {12}, 'off': {14}}",
	}
	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		line string
		on   []int
		off  []int
	}{
		{"on = {12, 13}, off = {14}", []int{12, 13}, []int{14}},
		{"on = set(), off = {16}", nil, []int{16}},
		{"on = {17}, off = set()", []int{17}, nil},
	}
	for _, tt := range tests {
		state, err := ParseLegacy(tt.line)
		if err != nil {
			t.Fatalf("ParseLegacy(%q): %v", tt.line, err)
		}
		if !state.On.Equal(NewSet(tt.on...)) || !state.Off.Equal(NewSet(tt.off...)) {
			t.Fatalf("ParseLegacy(%q): unexpected state %s", tt.line, state)
		}
	}
}

func TestParseLegacyRejectsExpressions(t *testing.T) {
	for _, input := range []string{
		"on = {12}, off = {__import__('os')}",
		"on = {1+1}, off = {14}",
		"{'on': {12}, 'off': {14}}",
	} {
		if _, err := ParseLegacy(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestStateWithinDropsForeignIDs(t *testing.T) {
	r, _ := New(12, 6)
	state, dropped := State{On: NewSet(3, 12, 99), Off: NewSet(14, 40)}.Within(r)
	if !state.On.Equal(NewSet(12)) || !state.Off.Equal(NewSet(14)) {
		t.Fatalf("unexpected state %s", state)
	}
	if len(dropped) != 3 {
		t.Fatalf("expected 3 dropped ids, got %v", dropped)
	}
}
