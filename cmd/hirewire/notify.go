package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/amishk599/hirewire/internal/notifier"
)

var notifyRecipient string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Publishes a test payload on the realtime channel and, when a digest is configured, sends a one-entry test digest.",
	RunE:  runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyRecipient, "recipient", "", "recipient topic to publish on (default: realtime.recipient)")
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var rdb *redis.Client
	if cfg.Realtime.Type == "redis" {
		rdb, err = openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	a := &app{cfg: cfg}
	pub := a.buildPublisher(cfg, rdb, logger)
	digest, err := buildDigest(cfg, logger)
	if err != nil {
		return err
	}

	recipient := notifyRecipient
	if recipient == "" {
		recipient = cfg.Realtime.Recipient
	}

	if err := notifier.SendTest(ctx, pub, recipient, digest, cfg.Digest.Recipients); err != nil {
		logger.Error("test notification failed", "error", err)
		return err
	}
	logger.Info("test notification sent successfully",
		"topic", notifier.Topic(recipient),
		"digest", digest != nil,
	)
	return nil
}
