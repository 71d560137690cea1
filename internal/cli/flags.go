package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The Optional types implement pflag.Value and remember whether the flag
// was given, so unset flags never mask file or environment values.

// OptionalDuration records a duration flag and whether it was set.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

func (o *OptionalDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalDuration) String() string {
	if !o.set {
		return ""
	}
	return o.value.String()
}

func (o *OptionalDuration) Type() string {
	return "duration"
}

func (o *OptionalDuration) Value() (time.Duration, bool) {
	return o.value, o.set
}

// Ptr returns nil when the flag was not given.
func (o *OptionalDuration) Ptr() *time.Duration {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// OptionalInt records an int flag and whether it was set.
type OptionalInt struct {
	value int
	set   bool
}

func (o *OptionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *OptionalInt) Type() string {
	return "int"
}

func (o *OptionalInt) Value() (int, bool) {
	return o.value, o.set
}

func (o *OptionalInt) Ptr() *int {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// OptionalString records a string flag and whether it was set.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Type() string {
	return "string"
}

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

func (o *OptionalString) Ptr() *string {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// OptionalBool records a bool flag and whether it was set.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) Type() string {
	return "bool"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}

func (o *OptionalBool) Ptr() *bool {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// OptionalChoice records a string flag restricted to a fixed set of values.
type OptionalChoice struct {
	OptionalString
	allowed []string
}

// NewOptionalChoice returns a choice flag accepting only allowed.
func NewOptionalChoice(allowed ...string) *OptionalChoice {
	return &OptionalChoice{allowed: allowed}
}

func (o *OptionalChoice) Set(s string) error {
	for _, a := range o.allowed {
		if s == a {
			return o.OptionalString.Set(s)
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(o.allowed, "|"))
}

func (o *OptionalChoice) Type() string {
	return strings.Join(o.allowed, "|")
}
