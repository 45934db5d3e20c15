package tunnel

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok/v2"

	"github.com/Masterofowls/Player/internal/config"
)

// Service exposes the player over a public ngrok URL, so a library at home
// can be listened to from anywhere.
type Service struct {
	config *config.TunnelConfig
	log    *logrus.Logger
	agent  ngrok.Agent
	tunnel ngrok.EndpointForwarder
}

// NewService creates a tunnel service. Returns nil when the tunnel is
// disabled in config; all methods are safe on a nil service.
func NewService(cfg *config.TunnelConfig, logger *logrus.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		return nil, fmt.Errorf("ngrok auth token not found; set NGROK_AUTHTOKEN or tunnel.auth_token")
	}

	agent, err := ngrok.NewAgent(ngrok.WithAuthtoken(authToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create ngrok agent: %w", err)
	}

	return &Service{config: cfg, log: logger, agent: agent}, nil
}

// Start opens the tunnel forwarding to the local server address.
func (s *Service) Start(ctx context.Context, localAddress string) error {
	if s == nil {
		return nil
	}

	s.log.Info("Starting ngrok tunnel")

	var endpointOpts []ngrok.EndpointOption
	if s.config.Domain != "" {
		endpointOpts = append(endpointOpts, ngrok.WithURL(s.config.Domain))
	}

	tunnel, err := s.agent.Forward(ctx, ngrok.WithUpstream(localAddress), endpointOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}
	s.tunnel = tunnel

	s.log.WithFields(logrus.Fields{
		"public_url": tunnel.URL().String(),
		"upstream":   localAddress,
	}).Info("Ngrok tunnel active")

	return nil
}

// PublicURL returns the public URL of the tunnel, empty when not running.
func (s *Service) PublicURL() string {
	if s == nil || s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL().String()
}

// Stop closes the tunnel.
func (s *Service) Stop() error {
	if s == nil || s.tunnel == nil {
		return nil
	}
	s.log.Info("Stopping ngrok tunnel")
	return s.tunnel.Close()
}
