package client

import (
	"context"
	"sync"
)

// Projection holds the minus-one counts a client shows while decrements are in
// flight. Apply moves the shown value at once; Confirm replaces it with the server's
// count; Fail undoes the pending step and marks the task failed.
type Projection struct {
	mu        sync.Mutex
	confirmed map[string]int
	pending   map[string]int
	failed    map[string]bool
}

func NewProjection() *Projection {
	return &Projection{
		confirmed: make(map[string]int),
		pending:   make(map[string]int),
		failed:    make(map[string]bool),
	}
}

// Seed records a count already known to be stored
func (p *Projection) Seed(taskID string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed[taskID] = count
}

// Apply adds one pending decrement and returns the projected count
func (p *Projection) Apply(taskID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[taskID]++
	delete(p.failed, taskID)
	return p.confirmed[taskID] + p.pending[taskID]
}

// Confirm settles one pending decrement with the count the server stored
func (p *Projection) Confirm(taskID string, serverCount int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settleLocked(taskID)
	p.confirmed[taskID] = serverCount
	return serverCount + p.pending[taskID]
}

// Fail drops one pending decrement, so the count goes back to the last confirmed
// value plus whatever is still in flight
func (p *Projection) Fail(taskID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settleLocked(taskID)
	p.failed[taskID] = true
	return p.confirmed[taskID] + p.pending[taskID]
}

func (p *Projection) Value(taskID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmed[taskID] + p.pending[taskID]
}

func (p *Projection) Failed(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed[taskID]
}

func (p *Projection) settleLocked(taskID string) {
	if p.pending[taskID] > 1 {
		p.pending[taskID]--
		return
	}
	delete(p.pending, taskID)
}

// MinusOne runs the two-phase decrement: onProjected sees the projected count before
// the request and the settled count after it
func (c *Client) MinusOne(ctx context.Context, p *Projection, taskID string, onProjected func(count int)) (int, error) {
	projected := p.Apply(taskID)
	if onProjected != nil {
		onProjected(projected)
	}

	task, err := c.DecrementDeadline(ctx, taskID)
	if err != nil {
		settled := p.Fail(taskID)
		if onProjected != nil {
			onProjected(settled)
		}
		return settled, err
	}

	settled := p.Confirm(taskID, task.MinusOneCount)
	if onProjected != nil {
		onProjected(settled)
	}
	return settled, nil
}
