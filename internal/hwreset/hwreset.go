// Package hwreset toggles a GPIO line to power-cycle the KNX
// interface hardware before the serial link is opened, for
// deployments where the adapter has a reset pin wired to a host GPIO.
package hwreset

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

// Line identifies a GPIO reset line: a character device chip path and
// an offset on that chip.
type Line struct {
	Chip   string
	Offset int
}

// Pulse drives the configured line low, holds it for hold, then
// releases it high and closes the request. A Line with an empty Chip
// is a no-op so gateways without a wired reset pin can leave this
// unconfigured.
func Pulse(line Line, hold time.Duration, logger *log.Logger) error {
	if line.Chip == "" {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}

	req, err := gpiocdev.RequestLine(line.Chip, line.Offset, gpiocdev.AsOutput(1))
	if err != nil {
		return fmt.Errorf("hwreset: request line %s:%d: %w", line.Chip, line.Offset, err)
	}
	defer req.Close()

	logger.Info("pulsing hardware reset line", "chip", line.Chip, "offset", line.Offset)
	if err := req.SetValue(0); err != nil {
		return fmt.Errorf("hwreset: drive low: %w", err)
	}
	time.Sleep(hold)
	if err := req.SetValue(1); err != nil {
		return fmt.Errorf("hwreset: drive high: %w", err)
	}
	return nil
}
