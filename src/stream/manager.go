package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
)

// Manager keeps the runners of a client by subscription id.
type Manager struct {
	Runners map[string]interfaces.IRunner
	Logger  *logger.Logger
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewManager(parent context.Context, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		Runners: make(map[string]interfaces.IRunner),
		Logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// -----------------------------------------------------------------------------

// Add registers a runner and starts it.
func (m *Manager) Add(runner interfaces.IRunner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return fmt.Errorf("stream manager is stopped")
	}

	id := runner.ID()
	if _, exists := m.Runners[id]; exists {
		return fmt.Errorf("subscription %s already exists", id)
	}

	m.Runners[id] = runner
	runner.Start(m.ctx, &m.wg)
	m.Logger.Info("started subscription %s", id)
	return nil
}

// -----------------------------------------------------------------------------

// Remove stops and forgets a runner.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	runner, exists := m.Runners[id]
	if !exists {
		return fmt.Errorf("subscription %s not found", id)
	}

	runner.Stop()
	delete(m.Runners, id)
	m.Logger.Info("removed subscription %s", id)
	return nil
}

// -----------------------------------------------------------------------------

// Get retrieves a runner by id.
func (m *Manager) Get(id string) (interfaces.IRunner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runner, ok := m.Runners[id]
	return runner, ok
}

// Statuses returns a snapshot of every runner, ordered by id.
func (m *Manager) Statuses() []models.MSubscriptionStatus {
	m.mu.RLock()
	list := make([]models.MSubscriptionStatus, 0, len(m.Runners))
	for _, r := range m.Runners {
		list = append(list, r.Status())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Subscription.ID < list[j].Subscription.ID })
	return list
}

// -----------------------------------------------------------------------------

// Stop cancels every runner and waits for their goroutines.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.Logger.Info("all subscriptions stopped")
}
