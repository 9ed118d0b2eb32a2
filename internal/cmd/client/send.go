package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewSendCommand sends one content message to a channel. When the relay is
// unreachable the message lands in the durable outbox and is replayed by the
// next send or listen that connects.
func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			data, _ := cmd.Flags().GetString("data")
			url, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			if channel == "" {
				return fmt.Errorf("--channel is required")
			}
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("--data must be valid JSON")
			}

			s, db, err := openSession(url, token, clientDataDir(dataDir), nil)
			if err != nil {
				return err
			}
			defer db.Close()
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			connected := s.Connect(ctx) == nil

			actionID, err := s.SendMessage(ctx, channel, json.RawMessage(data))
			if err != nil {
				return err
			}
			if connected {
				// Give a queued drain a moment to flush older actions too.
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					n, err := s.PendingCount()
					if err != nil || n == 0 {
						break
					}
					time.Sleep(50 * time.Millisecond)
				}
			}
			pending, _ := s.PendingCount()
			fmt.Printf("actionId: %s queued: %d online: %v\n", actionID, pending, connected)
			return nil
		},
	}
	cmd.Flags().String("channel", "", "Channel id")
	cmd.Flags().String("data", "{}", "Message payload (JSON)")
	cmd.Flags().String("url", relayURLFromEnv(), "Relay WebSocket URL")
	cmd.Flags().String("token", tokenFromEnv(), "Identity token")
	cmd.Flags().String("data-dir", "", "Client data directory (default OS-specific)")
	return cmd
}
