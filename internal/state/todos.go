package state

import (
	"encoding/json"
	"fmt"
	"os"
)

// Todo statuses accepted by the TodoWrite tool.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// TodoItem is one entry in a todo file, in the Claude CLI on-disk format.
type TodoItem struct {
	// Content describes the task.
	Content string `json:"content"`
	// Status is pending, in_progress or completed.
	Status string `json:"status"`
	// ActiveForm is the present-continuous label shown while running.
	ActiveForm string `json:"activeForm"`
}

// Validate checks the item's status field.
func (t TodoItem) Validate() error {
	switch t.Status {
	case TodoPending, TodoInProgress, TodoCompleted:
		return nil
	default:
		return fmt.Errorf("invalid todo status %q", t.Status)
	}
}

// SaveTodos writes a todo file as a pretty-printed JSON array, matching the
// layout the real CLI keeps under todos/.
func SaveTodos(path string, items []TodoItem) error {
	if items == nil {
		items = []TodoItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal todos: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadTodos reads a todo file back.
func LoadTodos(path string) ([]TodoItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []TodoItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse todos: %w", err)
	}
	return items, nil
}
