package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewStatsCommand fetches live registry statistics from a relay node.
func NewStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show connection and channel counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(baseURL() + "/v1/stats")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Println(string(bytes.TrimSpace(b)))
			return nil
		},
	}
}

// NewPublishCommand injects a server-originated message through the ops API.
func NewPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message via the server-side API",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			data, _ := cmd.Flags().GetString("data")
			sender, _ := cmd.Flags().GetString("sender")
			if channel == "" {
				return fmt.Errorf("--channel is required")
			}
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("--data must be valid JSON")
			}
			body, _ := json.Marshal(map[string]any{
				"channel": channel,
				"sender":  sender,
				"data":    json.RawMessage(data),
			})
			resp, err := http.Post(baseURL()+"/v1/channels/publish", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("status: %s %s\n", resp.Status, bytes.TrimSpace(b))
			return nil
		},
	}
	cmd.Flags().String("channel", "", "Channel id")
	cmd.Flags().String("data", "{}", "Message payload (JSON)")
	cmd.Flags().String("sender", "system", "Sender id stamped on the message")
	return cmd
}
