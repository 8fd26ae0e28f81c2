package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"donation-gateway/internal/adapters/messaging/kafka"
	"donation-gateway/internal/config"
	"donation-gateway/internal/observability"
)

func main() {
	env := "development"
	defaultBrokers, defaultTopic := "localhost:9092", "donations.notifications"
	if cfg, err := config.Load("configs/config.yaml"); err == nil {
		env = cfg.App.Env
		if cfg.Kafka.BootstrapServers != "" {
			defaultBrokers = cfg.Kafka.BootstrapServers
		}
		defaultTopic = cfg.Kafka.Topic
	}
	logger := observability.SetupLogger(env)

	var kafkaBrokers string
	var topic string

	rootCmd := &cobra.Command{Use: "notification-tool", Short: "Inspect and replay donation notifications"}
	rootCmd.PersistentFlags().StringVar(&kafkaBrokers, "brokers", defaultBrokers, "Kafka broker addresses, comma separated")
	rootCmd.PersistentFlags().StringVar(&topic, "topic", defaultTopic, "Notification topic")

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Show notifications from the start of the topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			audience, _ := cmd.Flags().GetString("audience")
			logger.Info("reading notifications", "topic", topic, "limit", limit)

			client, err := kgo.NewClient(
				kgo.SeedBrokers(strings.Split(kafkaBrokers, ",")...),
				kgo.ConsumeTopics(topic),
				kgo.FetchMaxWait(5*time.Second),
				kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
			)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}
			defer client.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTITION:OFFSET\tKIND\tAUDIENCE\tTRANSACTION\tRECIPIENT\tIDEMPOTENCY_KEY")
			fmt.Fprintln(w, "----------------\t----\t--------\t-----------\t---------\t---------------")

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			count := 0
			for count < limit {
				fetches := client.PollFetches(ctx)
				if fetches.IsClientClosed() || ctx.Err() != nil {
					break
				}
				if len(fetches.Records()) == 0 {
					logger.Info("no more notifications in the topic")
					break
				}
				fetches.EachRecord(func(record *kgo.Record) {
					if count >= limit {
						return
					}
					if audience != "" && kafka.Header(record, kafka.HeaderAudience) != audience {
						return
					}
					n, err := kafka.DecodeRecord(record)
					if err != nil {
						logger.Warn("skipping undecodable record", "error", err)
						return
					}
					fmt.Fprintf(w, "%d:%d\t%s\t%s\t%s\t%s\t%s\n",
						record.Partition, record.Offset, n.Kind, n.Audience, n.ProviderTransactionID, n.RecipientEmail, shortKey(n.IdempotencyKey))
					count++
				})
			}
			return w.Flush()
		},
	}
	viewCmd.Flags().Int("limit", 20, "Number of notifications to show")
	viewCmd.Flags().String("audience", "", "Only show donor or admin notifications")

	replayCmd := &cobra.Command{
		Use:   "replay [partition:offset]",
		Short: "Publish one notification again, e.g. after a downstream mailer outage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetTopic, _ := cmd.Flags().GetString("target-topic")
			if targetTopic == "" {
				targetTopic = topic
			}
			partition, offset, err := parsePartitionOffset(args[0])
			if err != nil {
				return err
			}
			logger.Info("replaying notification", "from_topic", topic, "partition", partition, "offset", offset, "to_topic", targetTopic)

			brokers := strings.Split(kafkaBrokers, ",")
			consumer, err := kgo.NewClient(
				kgo.SeedBrokers(brokers...),
				kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
					topic: {partition: kgo.NewOffset().At(offset)},
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}
			defer consumer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			fetches := consumer.PollFetches(ctx)
			if err := fetches.Err(); err != nil {
				return fmt.Errorf("failed to read notification: %w", err)
			}
			records := fetches.Records()
			if len(records) == 0 || records[0].Offset != offset {
				return errors.New("no notification at the given offset")
			}
			n, err := kafka.DecodeRecord(records[0])
			if err != nil {
				return err
			}

			producer, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
			if err != nil {
				return fmt.Errorf("failed to create producer: %w", err)
			}
			defer producer.Close()

			record, err := kafka.NewRecord(targetTopic, n)
			if err != nil {
				return err
			}
			if err := producer.ProduceSync(ctx, record).FirstErr(); err != nil {
				return fmt.Errorf("failed to publish notification: %w", err)
			}
			logger.Info("notification published again", "kind", n.Kind, "provider_transaction_id", n.ProviderTransactionID)
			return nil
		},
	}
	replayCmd.Flags().String("target-topic", "", "Topic to publish to (defaults to --topic)")

	rootCmd.AddCommand(viewCmd, replayCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// parsePartitionOffset parses "partition:offset", e.g. "0:123".
func parsePartitionOffset(arg string) (int32, int64, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid format %q, expected partition:offset such as 0:123", arg)
	}
	partition, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil || partition < 0 {
		return 0, 0, fmt.Errorf("invalid partition %q", parts[0])
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset %q", parts[1])
	}
	return int32(partition), offset, nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
