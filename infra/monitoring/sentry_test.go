package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/showplan/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(Config{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitorCapturesTags(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	m, err := newSentryMonitor(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("publish failed"), map[string]string{"module": "mqtt", "plan_id": "7"})
	m.Flush(time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "mqtt", events[0].Tags["module"])
	assert.Equal(t, "7", events[0].Tags["plan_id"])
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 2*time.Second, c.FlushTimeout())
	assert.NoError(t, c.Validate())
	assert.Error(t, Config{TracesSampleRate: 1.5}.Validate())
}
