package main

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kaizorxxx/novastream/pkg/playback"
)

// sessionManager hands out one playback.Controller per client session ID.
// Controllers are created lazily on first use and live until shutdown.
type sessionManager struct {
	mu          sync.Mutex
	controllers map[string]*playback.Controller
	opts        playback.ControllerOptions
	resolver    playback.Resolver
	policy      playback.AdPolicy
	logger      *zap.Logger
}

func newSessionManager(opts playback.ControllerOptions, resolver playback.Resolver, policy playback.AdPolicy, logger *zap.Logger) *sessionManager {
	return &sessionManager{
		controllers: map[string]*playback.Controller{},
		opts:        opts,
		resolver:    resolver,
		policy:      policy,
		logger:      logger,
	}
}

func (m *sessionManager) get(sessionID string) (*playback.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if controller, found := m.controllers[sessionID]; found {
		return controller, nil
	}
	controller, err := playback.NewController(m.opts, m.resolver, m.policy, playback.SessionFlags{}, m.logger.With(zap.String("sessionID", sessionID)))
	if err != nil {
		return nil, err
	}
	m.controllers[sessionID] = controller
	return controller, nil
}

func (m *sessionManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, controller := range m.controllers {
		controller.Close()
	}
	m.controllers = map[string]*playback.Controller{}
}
