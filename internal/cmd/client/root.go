package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the relay client.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Relay client commands",
	}
	root.AddCommand(NewSendCommand())
	root.AddCommand(NewListenCommand())
	root.AddCommand(NewOutboxCommand())
	root.AddCommand(NewStatsCommand(baseURL))
	root.AddCommand(NewPublishCommand(baseURL))
	return root
}
