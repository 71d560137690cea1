package led

// Brightness levels. Anything in between is a custom level.
const (
	Off       uint8 = 0
	DefaultOn uint8 = 32
)

// Driver sets indicator brightness on a physical or simulated device.
type Driver interface {
	// Set changes a single slot.
	Set(slot int, brightness uint8) error
	// SetGroup changes every slot of a leg at once.
	SetGroup(group Group, brightness uint8) error
	// Off extinguishes every slot the driver controls.
	Off() error
	Close() error
}
