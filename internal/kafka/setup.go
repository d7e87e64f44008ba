package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Dhoini/clipgo-booking/pkg/logger"

	kafkaGo "github.com/segmentio/kafka-go"
)

// Topics - все топики, в которые пишет сервис, с числом партиций.
var Topics = map[string]int{
	TopicSubscriptionConfirmed: 3,
	TopicSubscriptionPaused:    1,
	TopicSubscriptionResumed:   1,
	TopicSubscriptionCancelled: 2,
	TopicBookingCreated:        3,
	TopicBookingCancelled:      2,
	TopicBookingStatusChanged:  2,
}

// EnsureTopics создает недостающие топики через контроллер кластера.
func EnsureTopics(ctx context.Context, brokers []string, log *logger.Logger) error {
	if len(brokers) == 0 || brokers[0] == "" {
		return errors.New("kafka: broker address is empty")
	}
	if _, _, err := net.SplitHostPort(brokers[0]); err != nil {
		return fmt.Errorf("kafka: invalid broker address %s: %w", brokers[0], err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialContext(dialCtx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	// Топики создаются только на контроллере
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: find controller: %w", err)
	}
	ctrlConn, err := kafkaGo.DialContext(dialCtx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka: dial controller: %w", err)
	}
	defer ctrlConn.Close()

	partitions, err := ctrlConn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka: read partitions: %w", err)
	}
	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var missing []kafkaGo.TopicConfig
	for topic, n := range Topics {
		if !existing[topic] {
			missing = append(missing, kafkaGo.TopicConfig{Topic: topic, NumPartitions: n, ReplicationFactor: 1})
		}
	}
	if len(missing) == 0 {
		log.Debugw("All Kafka topics already exist")
		return nil
	}

	if err := ctrlConn.CreateTopics(missing...); err != nil && !errors.Is(err, kafkaGo.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topics: %w", err)
	}
	log.Infow("Kafka topics created", "count", len(missing))
	return nil
}
