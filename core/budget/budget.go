// Package budget caps search loops. Every capped loop in the solver spends
// from a Counter and stops on ErrExceeded.
package budget

import (
	"errors"
	"fmt"
)

// ErrExceeded is the single outcome of an exhausted search budget.
var ErrExceeded = errors.New("search budget exceeded")

// ExceededError names the loop whose budget ran out.
type ExceededError struct {
	Name  string
	Limit int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: %v after %d steps", e.Name, ErrExceeded, e.Limit)
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }

// Counter counts steps of one loop. A limit <= 0 never runs out.
type Counter struct {
	name  string
	limit int
	used  int
}

// New returns a counter for the named loop.
func New(name string, limit int) *Counter {
	return &Counter{name: name, limit: limit}
}

// Spend consumes one step.
func (c *Counter) Spend() error {
	if c.limit > 0 && c.used >= c.limit {
		return &ExceededError{Name: c.name, Limit: c.limit}
	}
	c.used++
	return nil
}

// Used returns the number of steps taken so far.
func (c *Counter) Used() int { return c.used }

// Exhausted reports whether the next Spend would fail.
func (c *Counter) Exhausted() bool { return c.limit > 0 && c.used >= c.limit }
