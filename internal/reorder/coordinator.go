// Package reorder keeps a todo list responsive while a new ordering is being
// persisted: the new arrangement is shown at once and reconciled with the
// server's canonical order when the batch completes or fails.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/model"
)

var (
	ErrBusy            = errors.New("reorder already in progress")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotPermutation  = errors.New("target is not a permutation of the current list")
)

type State int

const (
	// Idle shows the canonical list.
	Idle State = iota
	// Optimistic shows the locally computed list while the batch is in flight.
	Optimistic
	// Reconciling keeps the optimistic list until the canonical re-fetch lands.
	Reconciling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Optimistic:
		return "optimistic"
	case Reconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store is the persistence side for a single user's list.
type Store interface {
	Fetch(ctx context.Context) ([]model.Todo, error)
	Reorder(ctx context.Context, ids []int64) ([]model.Todo, error)
}

// Notifier surfaces a failed reorder to the user.
type Notifier interface {
	ReorderFailed(err error)
}

type NotifierFunc func(err error)

func (f NotifierFunc) ReorderFailed(err error) { f(err) }

type Coordinator struct {
	store  Store
	notify Notifier
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	canonical  []model.Todo
	optimistic []model.Todo
}

func NewCoordinator(store Store, notify Notifier, logger *zap.Logger) *Coordinator {
	if notify == nil {
		notify = NotifierFunc(func(error) {})
	}
	return &Coordinator{
		store:  store,
		notify: notify,
		logger: logger,
	}
}

// Refresh replaces the canonical list with a fresh fetch.
func (c *Coordinator) Refresh(ctx context.Context) ([]model.Todo, error) {
	todos, err := c.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	model.SortTodos(todos)

	c.mu.Lock()
	c.canonical = todos
	c.mu.Unlock()
	return clone(todos), nil
}

// View returns what the list should display right now.
func (c *Coordinator) View() []model.Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.viewLocked())
}

func (c *Coordinator) viewLocked() []model.Todo {
	if c.state != Idle && c.optimistic != nil {
		return c.optimistic
	}
	return c.canonical
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether interaction with the list must be suppressed.
func (c *Coordinator) Busy() bool {
	return c.State() != Idle
}

// BeginReorder moves the todo at position from to position to and persists
// the full resulting sequence. Equal indices are a no-op. Gestures arriving
// while a batch is in flight are rejected with ErrBusy, never queued.
func (c *Coordinator) BeginReorder(ctx context.Context, from, to int) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	current := c.viewLocked()
	if from < 0 || from >= len(current) || to < 0 || to >= len(current) {
		c.mu.Unlock()
		return fmt.Errorf("move %d -> %d in list of %d: %w", from, to, len(current), ErrIndexOutOfRange)
	}
	if from == to {
		c.mu.Unlock()
		return nil
	}
	c.startLocked(Move(current, from, to))
	c.mu.Unlock()

	return c.persist(ctx)
}

// Apply persists an arbitrary rearrangement of the current list, such as the
// output of the prioritization matcher.
func (c *Coordinator) Apply(ctx context.Context, target []model.Todo) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	current := c.viewLocked()
	if !samePermutation(current, target) {
		c.mu.Unlock()
		return ErrNotPermutation
	}
	if sameOrder(current, target) {
		c.mu.Unlock()
		return nil
	}
	c.startLocked(clone(target))
	c.mu.Unlock()

	return c.persist(ctx)
}

func (c *Coordinator) startLocked(list []model.Todo) {
	c.optimistic = list
	c.state = Optimistic
}

func (c *Coordinator) persist(ctx context.Context) error {
	c.mu.Lock()
	ids := model.IDs(c.optimistic)
	c.mu.Unlock()

	c.logger.Debug("persisting reorder", zap.Int("todos", len(ids)))

	// Отмена не поддерживается: отправленный батч доводим до конца
	updated, err := c.store.Reorder(context.WithoutCancel(ctx), ids)
	if err != nil {
		c.fail(ctx, err)
		return fmt.Errorf("reorder: %w", err)
	}

	c.mu.Lock()
	c.state = Reconciling
	c.mu.Unlock()

	fresh, fetchErr := c.store.Fetch(context.WithoutCancel(ctx))
	if fetchErr != nil {
		c.logger.Warn("canonical refetch after reorder failed, using mutation result", zap.Error(fetchErr))
		fresh = updated
	}
	model.SortTodos(fresh)

	c.mu.Lock()
	c.canonical = fresh
	c.optimistic = nil
	c.state = Idle
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) fail(ctx context.Context, cause error) {
	c.mu.Lock()
	c.optimistic = nil
	c.state = Idle
	c.mu.Unlock()

	c.logger.Warn("reorder failed, reloading canonical order", zap.Error(cause))

	if _, err := c.Refresh(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("refetch after failed reorder", zap.Error(err))
	}
	c.notify.ReorderFailed(cause)
}

// Move returns a copy of list with the element at from relocated to to,
// keeping the relative order of every other element.
func Move(list []model.Todo, from, to int) []model.Todo {
	out := make([]model.Todo, 0, len(list))
	moved := list[from]
	for i, t := range list {
		if i != from {
			out = append(out, t)
		}
	}
	out = append(out, model.Todo{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

func clone(list []model.Todo) []model.Todo {
	if list == nil {
		return nil
	}
	out := make([]model.Todo, len(list))
	copy(out, list)
	return out
}

func sameOrder(a, b []model.Todo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func samePermutation(a, b []model.Todo) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int64]int, len(a))
	for _, t := range a {
		seen[t.ID]++
	}
	for _, t := range b {
		if seen[t.ID] == 0 {
			return false
		}
		seen[t.ID]--
	}
	return true
}
