package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
)

// NewListenCommand subscribes to a channel and prints every event until
// interrupted.
func NewListenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to a channel and print events",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			filter, _ := cmd.Flags().GetString("filter")
			url, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			if channel == "" {
				return fmt.Errorf("--channel is required")
			}

			onEvent := func(env protocol.Envelope) {
				b, _ := json.Marshal(env)
				fmt.Println(string(b))
			}
			s, db, err := openSession(url, token, clientDataDir(dataDir), onEvent)
			if err != nil {
				return err
			}
			defer db.Close()
			defer s.Close()

			ctx := cmd.Context()
			if err := s.Connect(ctx); err != nil {
				return err
			}
			if err := s.Subscribe(ctx, channel, filter); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().String("channel", "", "Channel id")
	cmd.Flags().String("filter", "", "Optional CEL filter for content messages")
	cmd.Flags().String("url", relayURLFromEnv(), "Relay WebSocket URL")
	cmd.Flags().String("token", tokenFromEnv(), "Identity token")
	cmd.Flags().String("data-dir", "", "Client data directory (default OS-specific)")
	return cmd
}
