// Package session keeps the live result screens of the service and plays
// the navigator for them.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
	"github.com/AkinduIB/GreenGuard/internal/logger"
	"github.com/AkinduIB/GreenGuard/internal/navigation"
	"github.com/AkinduIB/GreenGuard/internal/screen"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// Manager implements navigation.Navigator over in-memory result screens.
type Manager struct {
	cfg screen.ResultConfig
	ttl time.Duration

	mu      sync.RWMutex
	screens map[string]*screen.Result

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	newID    func() string
}

var _ navigation.Navigator = (*Manager)(nil)

// NewManager creates a manager. A positive ttl starts a sweeper that closes
// screens older than ttl.
func NewManager(cfg screen.ResultConfig, ttl time.Duration) *Manager {
	m := &Manager{
		cfg:     cfg,
		ttl:     ttl,
		screens: make(map[string]*screen.Result),
		stop:    make(chan struct{}),
		newID:   uuid.NewString,
	}
	if ttl > 0 {
		m.wg.Add(1)
		go m.sweep()
	}
	return m
}

// Navigate pushes a result screen and starts its pipeline.
func (m *Manager) Navigate(ctx context.Context, route navigation.Route, params models.ResultParams) (string, error) {
	switch route {
	case navigation.RouteResult:
	case navigation.RouteCamera:
		return "", navigation.ErrRouteNotImplemented
	default:
		return "", apperrors.NewValidationError("unknown route: "+string(route), nil)
	}

	id := m.newID()
	r := screen.NewResult(id, params, m.cfg)

	m.mu.Lock()
	m.screens[id] = r
	m.mu.Unlock()

	if err := r.Start(ctx); err != nil {
		m.remove(id)
		return "", err
	}

	logger.WithFields(logrus.Fields{
		"session_id":  id,
		"image_uri":   params.ImageURI,
		"disease_key": params.DiseaseKey,
	}).Debug("Result screen pushed")
	return id, nil
}

// Back closes the screen and forgets it.
func (m *Manager) Back(ctx context.Context, id string) error {
	r := m.remove(id)
	if r == nil {
		return apperrors.NewNotFoundError("session not found", nil).WithDetails(id)
	}
	r.Close()
	return nil
}

// Get returns a live screen.
func (m *Manager) Get(id string) (*screen.Result, error) {
	m.mu.RLock()
	r, ok := m.screens[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found", nil).WithDetails(id)
	}
	return r, nil
}

// Len returns the number of live screens.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.screens)
}

// Close stops the sweeper and closes every screen.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	screens := m.screens
	m.screens = make(map[string]*screen.Result)
	m.mu.Unlock()

	for _, r := range screens {
		r.Close()
	}
}

func (m *Manager) remove(id string) *screen.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.screens[id]
	if !ok {
		return nil
	}
	delete(m.screens, id)
	return r
}

func (m *Manager) sweep() {
	defer m.wg.Done()

	interval := m.ttl / 2
	if interval <= 0 {
		interval = m.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

// expire closes screens created more than ttl before now.
func (m *Manager) expire(now time.Time) int {
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	var expired []*screen.Result
	for id, r := range m.screens {
		if r.CreatedAt().Before(cutoff) {
			expired = append(expired, r)
			delete(m.screens, id)
		}
	}
	m.mu.Unlock()

	for _, r := range expired {
		r.Close()
	}
	if len(expired) > 0 {
		logger.WithField("expired", len(expired)).Info("Expired idle sessions")
	}
	return len(expired)
}
