// Package mqtt defines how solved plans leave the process over MQTT.
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/showplan/core/planner"
)

// DefaultTopicPrefix is the root under which plans are published.
const DefaultTopicPrefix = "showplan/plans"

// PlanMessage is the payload published for one solve run.
type PlanMessage struct {
	RunID       string         `json:"run_id"`
	PlanID      int            `json:"plan_id"`
	Outcome     string         `json:"outcome"`
	PublishedAt time.Time      `json:"published_at"`
	Result      planner.Result `json:"result"`
}

// Publisher delivers plan messages to downstream consumers.
type Publisher interface {
	PublishPlan(ctx context.Context, msg PlanMessage) error
	Close()
}

// PlanTopic returns the topic of a plan under prefix.
func PlanTopic(prefix string, planID int) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s/%d", prefix, planID)
}
