package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/showplan/core/metrics"
	"github.com/kilianp07/showplan/infra/logger"
	"github.com/kilianp07/showplan/internal/eventbus"
)

// StartEventCollector subscribes to the solve bus and forwards every event to
// the sink. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[coremetrics.SolveEvent], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordSolve(ev); err != nil {
					log.Warnf("record solve %s: %v", ev.RunID, err)
				}
			}
		}
	}()
	return done
}
