// Package health aggregates component checks into liveness and readiness
// reports.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/service"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check
type Check struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Report represents the overall health report
type Report struct {
	Status    Status                            `json:"status"`
	Timestamp time.Time                         `json:"timestamp"`
	Uptime    string                            `json:"uptime"`
	Checks    map[string]Check                  `json:"checks"`
	Services  map[string]service.StatusSnapshot `json:"services,omitempty"`
}

// Ready reports whether the process can serve traffic
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Checker is an interface for health checkers
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Manager runs the registered checkers
type Manager struct {
	logger       *logger.Logger
	checkers     []Checker
	svcManager   *service.Manager
	startTime    time.Time
	checkTimeout time.Duration
	mu           sync.RWMutex
}

// NewManager creates a new health check manager; svcManager may be nil
func NewManager(log *logger.Logger, svcManager *service.Manager) *Manager {
	return &Manager{
		logger:       log.Named("health"),
		svcManager:   svcManager,
		startTime:    time.Now(),
		checkTimeout: 3 * time.Second,
	}
}

// RegisterChecker registers a health checker
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check performs all health checks. The worst check wins.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	checks := make(map[string]Check, len(checkers))
	overall := StatusHealthy

	for _, checker := range checkers {
		check := checker.Check(ctx)
		checks[check.Name] = check

		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	if overall != StatusHealthy {
		m.logger.Debug("Health check not healthy", "status", string(overall))
	}

	report := Report{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime).Truncate(time.Second).String(),
		Checks:    checks,
	}

	if m.svcManager != nil {
		report.Services = make(map[string]service.StatusSnapshot)
		for name, status := range m.svcManager.GetAllStatuses() {
			report.Services[name] = status.Snapshot()
		}
	}

	return report
}

// Uptime returns the time since the manager was created
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startTime)
}
