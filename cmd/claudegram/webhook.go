package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ent0n29/claudegram/internal/config"
	"github.com/ent0n29/claudegram/internal/telegram"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect or manage the registered webhook",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Register TELEGRAM_WEBHOOK_URL with the Bot API",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if err := cfg.RequireBotToken(); err != nil {
					return err
				}
				if cfg.WebhookURL == "" {
					return fmt.Errorf("TELEGRAM_WEBHOOK_URL is not set")
				}
				client := telegram.NewClient(cfg.BotToken)
				if err := client.SetWebhook(cmd.Context(), cfg.WebhookURL, cfg.WebhookSecret); err != nil {
					return err
				}
				return printWebhookInfo(cmd, client)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the registered webhook",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if err := cfg.RequireBotToken(); err != nil {
					return err
				}
				return telegram.NewClient(cfg.BotToken).DeleteWebhook(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "info",
			Short: "Print the current webhook registration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if err := cfg.RequireBotToken(); err != nil {
					return err
				}
				return printWebhookInfo(cmd, telegram.NewClient(cfg.BotToken))
			},
		},
	)
	return cmd
}

func printWebhookInfo(cmd *cobra.Command, client *telegram.Client) error {
	info, err := client.WebhookInfo(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "url: %s\npending updates: %d\n", info.URL, info.PendingUpdateCount)
	if info.LastErrorMessage != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "last error: %s\n", info.LastErrorMessage)
	}
	return nil
}
