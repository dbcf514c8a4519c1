package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/softeno/permission-template/internal/core/events"
	"github.com/softeno/permission-template/internal/messaging"
	"github.com/softeno/permission-template/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events through the bus and, when Kafka is enabled, to the outbound topic`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var eventData string

func publishTestEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.LoggerWrapper()
	eventBus := events.NewEventBus(log)

	if forward {
		config, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !config.Kafka.Enabled {
			return fmt.Errorf("kafka is disabled; cannot forward %q", eventType)
		}
		producer := messaging.NewProducer(config.Kafka, log)
		defer producer.Close()
		messaging.ForwardEventType(eventBus, producer, eventType)
	}

	return publishOn(ctx, eventBus, log, eventType, eventData)
}

// publishOn sends one generic event synchronously so handler errors surface.
func publishOn(ctx context.Context, bus *events.EventBus, log *slog.Logger, eventType, message string) error {
	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.NewGenericEvent(eventType, map[string]interface{}{
		"message": message,
		"source":  "cli-command",
	})

	log.Info("publishing test event", "event_type", eventType, "event_id", testEvent.ID)
	if err := bus.PublishSync(ctx, testEvent); err != nil {
		log.Error("failed to publish event", "error", err)
		return err
	}

	log.Info("test event published successfully")
	return nil
}

var forward bool

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().BoolVar(&forward, "kafka", false, "Also forward the event to the outbound Kafka topic")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
