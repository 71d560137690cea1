package led

import (
	"fmt"

	"github.com/stianeikeland/go-rpio"
)

// pinWriter abstracts the GPIO calls so the slot mapping can be tested off-device.
type pinWriter interface {
	set(pin int, on bool)
	close() error
}

type rpioPins struct{}

func (rpioPins) set(pinNum int, on bool) {
	pin := rpio.Pin(pinNum)
	pin.Output()
	if on {
		pin.High()
	} else {
		pin.Low()
	}
}

func (rpioPins) close() error {
	return rpio.Close()
}

// GPIODriver drives one plain LED per slot on Raspberry Pi GPIO pins. Pins
// are either on or off: any non-zero brightness drives the pin high.
type GPIODriver struct {
	pins   map[int]int
	writer pinWriter
}

// OpenGPIO maps the layout's slots, in slot order, onto BCM pin numbers.
func OpenGPIO(layout Layout, pins []int) (*GPIODriver, error) {
	mapping, err := gpioMapping(layout, pins)
	if err != nil {
		return nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return &GPIODriver{pins: mapping, writer: rpioPins{}}, nil
}

func gpioMapping(layout Layout, pins []int) (map[int]int, error) {
	slots := layout.Slots()
	if len(pins) != len(slots) {
		return nil, fmt.Errorf("gpio driver needs %d pins, got %d", len(slots), len(pins))
	}
	mapping := make(map[int]int, len(slots))
	seen := make(map[int]bool, len(pins))
	for i, slot := range slots {
		if seen[pins[i]] {
			return nil, fmt.Errorf("gpio pin %d assigned twice", pins[i])
		}
		seen[pins[i]] = true
		mapping[slot] = pins[i]
	}
	return mapping, nil
}

func (g *GPIODriver) Set(slot int, brightness uint8) error {
	pin, ok := g.pins[slot]
	if !ok {
		return fmt.Errorf("unknown slot %d", slot)
	}
	g.writer.set(pin, brightness > Off)
	return nil
}

func (g *GPIODriver) SetGroup(group Group, brightness uint8) error {
	for _, slot := range group.Slots() {
		if err := g.Set(slot, brightness); err != nil {
			return err
		}
	}
	return nil
}

func (g *GPIODriver) Off() error {
	for _, pin := range g.pins {
		g.writer.set(pin, false)
	}
	return nil
}

func (g *GPIODriver) Close() error {
	return g.writer.close()
}
