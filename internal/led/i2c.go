package led

import (
	"fmt"
	"os"
	"syscall"

	"github.com/doridoridoriand/glowping/internal/log"
)

const i2cSlave = 0x0703

// i2cBus is a character-device I2C connection bound to one slave address.
// In simulated mode writes are logged instead of sent.
type i2cBus struct {
	fd        *os.File
	address   uint8
	simulated bool
	logger    *log.Logger
}

func openI2C(address uint8, bus int, simulated bool, logger *log.Logger) (*i2cBus, error) {
	if simulated {
		return &i2cBus{address: address, simulated: true, logger: logger}, nil
	}
	f, err := os.OpenFile(fmt.Sprintf("/dev/i2c-%d", bus), os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	if err := ioctl(f.Fd(), i2cSlave, uintptr(address)); err != nil {
		f.Close()
		return nil, fmt.Errorf("select i2c address 0x%02x: %w", address, err)
	}
	return &i2cBus{fd: f, address: address, logger: logger}, nil
}

func (b *i2cBus) Write(buf []byte) (int, error) {
	if b.simulated {
		b.logger.Debug("i2c write", map[string]interface{}{
			"address": fmt.Sprintf("0x%02x", b.address),
			"bytes":   fmt.Sprintf("% x", buf),
		})
		return len(buf), nil
	}
	return b.fd.Write(buf)
}

func (b *i2cBus) Close() error {
	if b.simulated {
		return nil
	}
	return b.fd.Close()
}

func ioctl(fd, cmd, arg uintptr) error {
	_, _, errno := syscall.Syscall6(syscall.SYS_IOCTL, fd, cmd, arg, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
