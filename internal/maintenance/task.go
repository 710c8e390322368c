// Package maintenance runs periodic housekeeping against the store database:
// pruning delivered outbox rows and abandoned PayPal checkouts.
package maintenance

import "context"

// Task is one housekeeping step. Run reports how many rows it removed.
type Task interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

// Registry keeps tasks in the order they run.
type Registry struct {
	tasks []Task
}

func NewRegistry(tasks ...Task) *Registry {
	r := &Registry{}
	for _, t := range tasks {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Task) {
	if t == nil {
		return
	}
	r.tasks = append(r.tasks, t)
}

func (r *Registry) Tasks() []Task {
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}
