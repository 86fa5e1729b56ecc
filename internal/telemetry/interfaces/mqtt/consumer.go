package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	application "garden-cloud/internal/telemetry/application"
)

const (
	dataTopicFilter      = "machine/+/data"
	subscribeTopicFilter = "machine/+/subscribe"
)

// entryPayload is one reading as machines publish it.
type entryPayload struct {
	DataID        string   `json:"dataId"`
	DateOfCapture any      `json:"date_of_capture"`
	Frequency     string   `json:"frequency"`
	Value         *float64 `json:"value"`
	Type          string   `json:"type"`
	SerialMachine string   `json:"serial_machine"`
}

// ack is published to <topic>/result after a data message is handled.
type ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Consumer bridges the broker to the ingest service. Messages carry
// either a JSON array of entries or a single entry object; entries are
// handled independently and a failing entry never drops the rest.
type Consumer struct {
	client  paho.Client
	service *application.IngestService
	logger  *log.Logger
}

// NewConsumer constructs a consumer over an already configured client.
func NewConsumer(client paho.Client, service *application.IngestService, logger *log.Logger) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("mqtt consumer: nil client")
	}
	if service == nil {
		return nil, errors.New("mqtt consumer: nil ingest service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{client: client, service: service, logger: logger}, nil
}

// Start connects and subscribes to the machine topics. The context
// bounds the ingest work spawned per message, not the subscription.
func (c *Consumer) Start(ctx context.Context) error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	if token := c.client.Subscribe(dataTopicFilter, 1, func(_ paho.Client, msg paho.Message) {
		c.handleData(ctx, msg.Topic(), msg.Payload())
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", dataTopicFilter, token.Error())
	}
	if token := c.client.Subscribe(subscribeTopicFilter, 1, func(_ paho.Client, msg paho.Message) {
		c.handleSubscribe(msg.Topic())
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", subscribeTopicFilter, token.Error())
	}
	c.logger.Printf("mqtt consumer listening on %s and %s", dataTopicFilter, subscribeTopicFilter)
	return nil
}

// Stop disconnects from the broker.
func (c *Consumer) Stop() {
	c.client.Disconnect(250)
}

func (c *Consumer) handleData(ctx context.Context, topic string, payload []byte) {
	results, err := c.Process(ctx, topic, payload)
	if err != nil {
		c.logger.Printf("mqtt message on %s rejected: %v", topic, err)
		c.publishAck(topic, ack{Status: "error", Message: err.Error()})
		return
	}

	stored, candidates, failed := tally(results)
	c.logger.Printf("mqtt batch on %s: stored=%d candidates=%d failed=%d", topic, stored, candidates, failed)
	c.publishAck(topic, ack{
		Status:  "ok",
		Message: fmt.Sprintf("Insertion successful (%d stored, %d candidates, %d failed)", stored, candidates, failed),
	})
}

// Process decodes and ingests one data message. Exposed for tests.
func (c *Consumer) Process(ctx context.Context, topic string, payload []byte) ([]application.EntryResult, error) {
	entries, err := decodeEntries(payload)
	if err != nil {
		return nil, err
	}
	raw := make([]application.RawEntry, 0, len(entries))
	for _, entry := range entries {
		raw = append(raw, application.RawEntry{
			DataID:         entry.DataID,
			Timestamp:      entry.DateOfCapture,
			FrequencyLabel: entry.Frequency,
			Value:          entry.Value,
			Type:           entry.Type,
			SerialMachine:  entry.SerialMachine,
		})
	}
	return c.service.IngestBatch(ctx, raw), nil
}

func (c *Consumer) handleSubscribe(topic string) {
	machineID := "unknown"
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		machineID = parts[1]
	}
	c.logger.Printf("subscription request for machine %s received via mqtt", machineID)
}

func (c *Consumer) publishAck(topic string, a ack) {
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	resultTopic := topic + "/result"
	if token := c.client.Publish(resultTopic, 1, false, payload); token.Wait() && token.Error() != nil {
		c.logger.Printf("publish ack to %s failed: %v", resultTopic, token.Error())
	}
}

func decodeEntries(payload []byte) ([]entryPayload, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil, errors.New("empty payload")
	}
	if strings.HasPrefix(trimmed, "[") {
		var entries []entryPayload
		if err := json.Unmarshal(payload, &entries); err != nil {
			return nil, fmt.Errorf("decode entry array: %w", err)
		}
		return entries, nil
	}
	var entry entryPayload
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return []entryPayload{entry}, nil
}

func tally(results []application.EntryResult) (stored, candidates, failed int) {
	for _, result := range results {
		switch result.Outcome {
		case application.OutcomeStored:
			stored++
		case application.OutcomeCandidate:
			candidates++
		default:
			failed++
		}
	}
	return stored, candidates, failed
}
