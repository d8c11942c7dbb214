package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coremqtt "github.com/kilianp07/showplan/core/mqtt"
	"github.com/kilianp07/showplan/core/planner"
)

// TestIntegration publishes a plan through a real Mosquitto broker.
func TestIntegration(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("sub"))
	var connectErr error
	for i := 0; i < 5; i++ {
		if token := sub.Connect(); token.Wait() && token.Error() != nil {
			connectErr = token.Error()
			time.Sleep(500 * time.Millisecond)
			continue
		}
		connectErr = nil
		break
	}
	if connectErr != nil {
		t.Fatalf("failed to connect subscriber: %v", connectErr)
	}
	defer sub.Disconnect(250)

	got := make(chan coremqtt.PlanMessage, 1)
	token := sub.Subscribe("showplan/plans/+", 1, func(_ paho.Client, m paho.Message) {
		var msg coremqtt.PlanMessage
		if err := json.Unmarshal(m.Payload(), &msg); err == nil {
			got <- msg
		}
	})
	if token.Wait() && token.Error() != nil {
		t.Fatalf("failed to subscribe: %v", token.Error())
	}

	pub, err := NewPahoPublisher(Config{Broker: broker, ClientID: "pub", QoS: 1})
	if err != nil {
		t.Fatalf("failed to connect publisher: %v", err)
	}
	defer pub.Close()

	msg := coremqtt.PlanMessage{RunID: "it", PlanID: 42, Outcome: planner.OutcomeComplete}
	if err := pub.PublishPlan(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-got:
		if m.PlanID != 42 || m.RunID != "it" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive plan")
	}
}
