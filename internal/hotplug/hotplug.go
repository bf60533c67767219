// Package hotplug watches for the configured serial device node
// appearing over udev, generalizing a poll-the-filesystem wait into an
// event-driven one so the gateway can start before a USB-to-RS485
// adapter is plugged in.
package hotplug

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jochenvg/go-udev"
)

// WaitForDevice blocks until device exists, either because it already
// does or because a udev "add" event on the tty subsystem reports it.
// It returns immediately if device is already present.
func WaitForDevice(ctx context.Context, device string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	if _, err := os.Stat(device); err == nil {
		return nil
	}

	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("tty"); err != nil {
		return fmt.Errorf("hotplug: filter subsystem: %w", err)
	}

	events, errs, err := mon.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("hotplug: start monitor: %w", err)
	}

	logger.Info("waiting for serial device to appear", "device", device)
	for {
		if _, err := os.Stat(device); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return fmt.Errorf("hotplug: monitor: %w", err)
		case d, ok := <-events:
			if !ok {
				return fmt.Errorf("hotplug: monitor channel closed before %s appeared", device)
			}
			if d.Action() == "add" && d.Devnode() == device {
				logger.Info("serial device appeared", "device", device)
				return nil
			}
		}
	}
}
