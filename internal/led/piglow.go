package led

import (
	"fmt"
	"io"

	"github.com/doridoridoriand/glowping/internal/log"
)

// SN3218 registers.
const (
	sn3218Address  = 0x54
	regShutdown    = 0x00
	regPWM         = 0x01
	regEnable      = 0x13
	regUpdate      = 0x16
	sn3218Channels = 18
)

// piglowLegs maps each leg position (outer to inner) to its SN3218 channel.
var piglowLegs = [3][6]int{
	{6, 7, 8, 5, 4, 9},
	{17, 16, 15, 13, 11, 10},
	{0, 1, 2, 3, 14, 12},
}

// PiGlow drives a Pimoroni PiGlow. The SN3218 PWM registers cannot be read
// back, so the driver keeps a frame of all channels and rewrites it on
// every change.
type PiGlow struct {
	bus      io.WriteCloser
	channels map[int]int
	frame    [sn3218Channels]byte
}

// OpenPiGlow opens the PiGlow on /dev/i2c-<bus>. In simulated mode frames
// are logged rather than written.
func OpenPiGlow(layout Layout, bus int, simulated bool, logger *log.Logger) (*PiGlow, error) {
	if logger == nil {
		logger = log.Discard()
	}
	dev, err := openI2C(sn3218Address, bus, simulated, logger)
	if err != nil {
		return nil, fmt.Errorf("open piglow: %w", err)
	}
	p, err := newPiGlow(dev, layout)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return p, nil
}

func newPiGlow(bus io.WriteCloser, layout Layout) (*PiGlow, error) {
	channels, err := piglowChannels(layout)
	if err != nil {
		return nil, err
	}
	p := &PiGlow{bus: bus, channels: channels}
	if _, err := bus.Write([]byte{regShutdown, 0x01}); err != nil {
		return nil, fmt.Errorf("enable sn3218: %w", err)
	}
	if _, err := bus.Write([]byte{regEnable, 0x3f, 0x3f, 0x3f}); err != nil {
		return nil, fmt.Errorf("enable sn3218 channels: %w", err)
	}
	return p, nil
}

func piglowChannels(layout Layout) (map[int]int, error) {
	channels := make(map[int]int, sn3218Channels)
	for leg, g := range layout.Groups() {
		if g.Size > len(piglowLegs[leg]) {
			return nil, fmt.Errorf("%s leg has %d slots, piglow legs have %d", g.Name, g.Size, len(piglowLegs[leg]))
		}
		for i, slot := range g.Slots() {
			channels[slot] = piglowLegs[leg][i]
		}
	}
	return channels, nil
}

func (p *PiGlow) Set(slot int, brightness uint8) error {
	ch, ok := p.channels[slot]
	if !ok {
		return fmt.Errorf("unknown slot %d", slot)
	}
	p.frame[ch] = brightness
	return p.flush()
}

func (p *PiGlow) SetGroup(group Group, brightness uint8) error {
	for _, slot := range group.Slots() {
		ch, ok := p.channels[slot]
		if !ok {
			return fmt.Errorf("unknown slot %d in %s leg", slot, group.Name)
		}
		p.frame[ch] = brightness
	}
	return p.flush()
}

func (p *PiGlow) Off() error {
	p.frame = [sn3218Channels]byte{}
	return p.flush()
}

func (p *PiGlow) Close() error {
	return p.bus.Close()
}

func (p *PiGlow) flush() error {
	buf := make([]byte, 0, sn3218Channels+1)
	buf = append(buf, regPWM)
	buf = append(buf, p.frame[:]...)
	if _, err := p.bus.Write(buf); err != nil {
		return fmt.Errorf("write pwm: %w", err)
	}
	if _, err := p.bus.Write([]byte{regUpdate, 0xff}); err != nil {
		return fmt.Errorf("latch pwm: %w", err)
	}
	return nil
}
