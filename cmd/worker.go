package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/messaging"
	"github.com/softeno/permission-template/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that consume the inbound Kafka topics.`,
}

// Event consumer worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start Kafka event consumers",
	Long:  `Consume the inbound and identity provider topics and log every record.`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

func startEventWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Configure(config.Server.Env, config.Observability.Logging.Level, config.Observability.Logging.Format)

	consumers := eventConsumers(config.Kafka, log)
	if len(consumers) == 0 {
		log.Warn("no kafka topics to consume; enable kafka and set rx_topic or keycloak_topic")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, consumer := range consumers {
		wg.Add(1)
		go func(c *messaging.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Error("consumer stopped", "error", err)
			}
		}(consumer)
	}

	log.Info("event worker is running. Press Ctrl+C to stop.", "consumers", len(consumers))
	<-ctx.Done()
	log.Info("received signal, shutting down event worker")
	wg.Wait()
	log.Info("event worker shutdown complete")
}

// eventConsumers builds one consumer per configured inbound topic.
func eventConsumers(cfg internal.KafkaConfig, log *slog.Logger) []*messaging.Consumer {
	if !cfg.Enabled {
		return nil
	}
	var consumers []*messaging.Consumer
	for _, topic := range []string{cfg.RxTopic, cfg.KeycloakTopic} {
		if topic == "" {
			continue
		}
		log.Info("registering consumer", "topic", topic, "group_id", cfg.GroupID)
		consumers = append(consumers, messaging.NewConsumer(cfg.Brokers, cfg.GroupID, topic, log, messaging.LoggingHandler(log)))
	}
	return consumers
}

func init() {
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
