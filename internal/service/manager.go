// Package service runs the long-lived background services (the web server)
// next to the frame loop and stops them in reverse start order.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/VickramC07/BikeGuard/internal/logger"
)

// Service represents a service that can be started and stopped.
// Start must not block.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// Manager manages the lifecycle of all services
type Manager struct {
	logger      *logger.Logger
	services    []Service
	statuses    map[string]*ServiceStatus
	stopTimeout time.Duration
	mu          sync.RWMutex
	startOrder  []Service
}

// NewManager creates a new service manager
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger:      log.Named("service"),
		statuses:    make(map[string]*ServiceStatus),
		stopTimeout: 10 * time.Second,
	}
}

// Register registers a service with the manager
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
	m.statuses[svc.Name()] = NewServiceStatus(svc.Name())
}

// Start starts services in registration order. On the first failure the
// services already started are stopped and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting services", "count", len(m.services))

	for _, svc := range m.services {
		status := m.statuses[svc.Name()]
		status.SetStatus(StatusStarting)

		if err := svc.Start(ctx); err != nil {
			status.SetError(err)
			m.logger.Error("Service failed to start", "service", svc.Name(), "error", err)

			stopErr := m.stopStarted(ctx)
			return multierr.Append(fmt.Errorf("failed to start %s: %w", svc.Name(), err), stopErr)
		}

		status.SetStatus(StatusRunning)
		m.startOrder = append(m.startOrder, svc)
		m.logger.Info("Service started", "service", svc.Name())
	}

	return nil
}

// Shutdown stops every started service in reverse start order
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down services", "count", len(m.startOrder))
	if err := m.stopStarted(ctx); err != nil {
		return err
	}
	m.logger.Info("All services stopped")
	return nil
}

func (m *Manager) stopStarted(ctx context.Context) error {
	var err error
	for i := len(m.startOrder) - 1; i >= 0; i-- {
		svc := m.startOrder[i]
		status := m.statuses[svc.Name()]
		status.SetStatus(StatusStopping)

		stopCtx, cancel := context.WithTimeout(ctx, m.stopTimeout)
		if stopErr := svc.Stop(stopCtx); stopErr != nil {
			status.SetError(stopErr)
			m.logger.Error("Error stopping service", "service", svc.Name(), "error", stopErr)
			err = multierr.Append(err, fmt.Errorf("failed to stop %s: %w", svc.Name(), stopErr))
		} else {
			status.SetStatus(StatusStopped)
			m.logger.Info("Service stopped", "service", svc.Name())
		}
		cancel()
	}
	m.startOrder = nil
	return err
}

// GetServiceCount returns the number of registered services
func (m *Manager) GetServiceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// GetServiceStatus returns the status of a service
func (m *Manager) GetServiceStatus(serviceName string) *ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[serviceName]
}

// GetAllStatuses returns all service statuses
func (m *Manager) GetAllStatuses() map[string]*ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]*ServiceStatus, len(m.statuses))
	for name, status := range m.statuses {
		statuses[name] = status
	}
	return statuses
}
