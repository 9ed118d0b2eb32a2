package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/client/outbox"
)

// NewOutboxCommand inspects the client's durable outbox.
func NewOutboxCommand() *cobra.Command {
	root := &cobra.Command{Use: "outbox", Short: "Inspect the offline action queue"}

	withOutbox := func(cmd *cobra.Command, fn func(*outbox.Outbox) error) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		db, err := openClientStore(clientDataDir(dataDir))
		if err != nil {
			return err
		}
		defer db.Close()
		o, err := outbox.Open(db)
		if err != nil {
			return err
		}
		return fn(o)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending actions in FIFO order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOutbox(cmd, func(o *outbox.Outbox) error {
				acts, err := o.PeekAll()
				if err != nil {
					return err
				}
				for _, a := range acts {
					printAction(a)
				}
				fmt.Printf("pending: %d\n", len(acts))
				return nil
			})
		},
	}
	listCmd.Flags().String("data-dir", "", "Client data directory (default OS-specific)")

	deadCmd := &cobra.Command{
		Use:   "dead",
		Short: "List dead-lettered actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOutbox(cmd, func(o *outbox.Outbox) error {
				acts, err := o.DeadLetters()
				if err != nil {
					return err
				}
				for _, a := range acts {
					printAction(a)
				}
				fmt.Printf("dead: %d\n", len(acts))
				return nil
			})
		},
	}
	deadCmd.Flags().String("data-dir", "", "Client data directory (default OS-specific)")

	root.AddCommand(listCmd)
	root.AddCommand(deadCmd)
	return root
}
