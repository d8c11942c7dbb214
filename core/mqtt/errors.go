package mqtt

import (
	"errors"
	"fmt"
)

// ErrPublishTimeout is returned when the broker does not confirm a publish in time.
var ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")

// PublishError wraps the last failure after every retry was spent.
type PublishError struct {
	Topic    string
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed after %d attempts: %v", e.Topic, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
