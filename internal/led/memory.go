package led

import (
	"fmt"

	"github.com/doridoridoriand/glowping/internal/log"
)

// MemoryDriver keeps brightness in memory, logs every change at debug level
// and records an audit trail. It backs the "log" display driver and tests.
type MemoryDriver struct {
	layout Layout
	values map[int]uint8
	audit  []string
	logger *log.Logger
	closed bool
}

// NewMemoryDriver returns a driver for every slot of layout.
func NewMemoryDriver(layout Layout, logger *log.Logger) *MemoryDriver {
	if logger == nil {
		logger = log.Discard()
	}
	values := make(map[int]uint8, layout.Size())
	for _, slot := range layout.Slots() {
		values[slot] = Off
	}
	return &MemoryDriver{layout: layout, values: values, logger: logger}
}

func (m *MemoryDriver) Set(slot int, brightness uint8) error {
	if _, ok := m.values[slot]; !ok {
		return fmt.Errorf("unknown slot %d", slot)
	}
	m.values[slot] = brightness
	m.record(fmt.Sprintf("set %d=%d", slot, brightness))
	m.logger.Debug("set led", map[string]interface{}{"slot": slot, "brightness": brightness})
	return nil
}

func (m *MemoryDriver) SetGroup(group Group, brightness uint8) error {
	for _, slot := range group.Slots() {
		if _, ok := m.values[slot]; !ok {
			return fmt.Errorf("unknown slot %d in %s leg", slot, group.Name)
		}
	}
	for _, slot := range group.Slots() {
		m.values[slot] = brightness
	}
	m.record(fmt.Sprintf("set-group %s=%d", group.Name, brightness))
	m.logger.Debug("set leg", map[string]interface{}{"leg": group.Name, "brightness": brightness})
	return nil
}

func (m *MemoryDriver) Off() error {
	for slot := range m.values {
		m.values[slot] = Off
	}
	m.record("off")
	m.logger.Debug("all leds off", nil)
	return nil
}

func (m *MemoryDriver) Close() error {
	m.closed = true
	return nil
}

// Brightness returns the current level of slot.
func (m *MemoryDriver) Brightness(slot int) uint8 {
	return m.values[slot]
}

// Lit returns the lit slots of group in slot order.
func (m *MemoryDriver) Lit(group Group) []int {
	var lit []int
	for _, slot := range group.Slots() {
		if m.values[slot] > Off {
			lit = append(lit, slot)
		}
	}
	return lit
}

// Audit returns the recorded operations.
func (m *MemoryDriver) Audit() []string {
	return append([]string(nil), m.audit...)
}

// Closed reports whether Close was called.
func (m *MemoryDriver) Closed() bool {
	return m.closed
}

func (m *MemoryDriver) record(entry string) {
	m.audit = append(m.audit, entry)
}
