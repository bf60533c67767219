// Package discovery advertises the control server over mDNS/DNS-SD so
// home-automation hubs on the same LAN can find the gateway without a
// hardcoded address.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type blind control servers
// advertise themselves under.
const ServiceType = "_baos._tcp"

// Announce registers instance on port and starts responding to mDNS
// queries until ctx is cancelled. It returns once the service is
// registered; the responder itself runs in a background goroutine.
func Announce(ctx context.Context, instance string, port int, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	cfg := dnssd.Config{
		Name: instance,
		Type: ServiceType,
		Port: port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("discovery: new service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("discovery: new responder: %w", err)
	}
	if _, err := responder.Add(svc); err != nil {
		return fmt.Errorf("discovery: add service: %w", err)
	}

	logger.Info("announcing control server", "service", ServiceType, "instance", instance, "port", port)
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("mdns responder exited", "err", err)
		}
	}()
	return nil
}
