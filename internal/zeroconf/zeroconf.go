// Package zeroconf advertises the settings page as an mDNS/DNS-SD service so
// it can be found from other devices on the LAN.
package zeroconf

import (
	"context"
	"fmt"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

// ServiceType is the DNS-SD type the settings page is registered under.
const ServiceType = "_http._tcp"

// Service manages mDNS service registration.
type Service struct {
	name    string
	port    int
	version string
}

// New creates a Service that will advertise name on port.
func New(name string, port int, version string) *Service {
	return &Service{name: name, port: port, version: version}
}

// TXT returns the TXT records published with the service.
func (s *Service) TXT() []string {
	return []string{"version=" + s.version, "path=/", "app=unlockchime"}
}

// Start registers the service and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s.port <= 0 {
		return fmt.Errorf("zeroconf: invalid port %d", s.port)
	}
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, s.TXT(), nil)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	log.Info().Str("name", s.name).Int("port", s.port).Msg("zeroconf: registered settings page")

	<-ctx.Done()

	server.Shutdown()
	log.Info().Msg("zeroconf: unregistered")
	return nil
}
