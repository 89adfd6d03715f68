// Package task holds the household chores that stars are recorded against.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"weekly-stars/pkg/ledger"
)

// Task is a recurring weekly chore.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// List is the ordered chore list.
type List []Task

// New validates and builds a task.
func New(name string) (Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Task{}, fmt.Errorf("%w: task name is required", ledger.ErrInvalidInput)
	}
	return Task{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}, nil
}

// Get returns the task with the given id.
func (l List) Get(id string) (*Task, error) {
	for i := range l {
		if l[i].ID == id {
			return &l[i], nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", id, ledger.ErrNotFound)
}

// Remove drops the task with the given id.
func (l List) Remove(id string) (List, error) {
	for i := range l {
		if l[i].ID == id {
			return append(l[:i], l[i+1:]...), nil
		}
	}
	return l, fmt.Errorf("task %s: %w", id, ledger.ErrNotFound)
}
