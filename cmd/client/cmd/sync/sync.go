package sync

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/voidfemme/nbt-mapart-helper/internal/app/client"
)

var (
	syncHost   string
	syncPort   int
	showStatus bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync progress with the host",
	Long: `Pushes the local progress and session documents to the host.

When the host has moved on since the last sync, the conflict is resolved
according to the --resolve mode of the root command. With --status only
the host's document versions are shown and nothing is pushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, ok := client.SessionFromContext(cmd.Context())
		if !ok {
			return fmt.Errorf("session not initialized")
		}

		if syncHost == "" {
			return fmt.Errorf("--host is required")
		}

		if showStatus {
			if _, err := session.Dial(cmd.Context(), syncHost, syncPort); err != nil {
				return err
			}
			return printSyncStatus(cmd, session)
		}

		if !session.ConnectToHost(cmd.Context(), syncHost, syncPort) {
			return fmt.Errorf("could not connect to host %s:%d", syncHost, syncPort)
		}
		color.New(color.FgGreen).Println("Sync complete.")
		return nil
	},
}

func init() {
	SyncCmd.Flags().StringVar(&syncHost, "host", "", "host to sync with")
	SyncCmd.Flags().IntVar(&syncPort, "port", 8080, "host sync port")
	SyncCmd.Flags().BoolVar(&showStatus, "status", false, "show the host's sync status without pushing")
}

func printSyncStatus(cmd *cobra.Command, session *client.LANSession) error {
	status, err := session.Client().GetSyncStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch sync status: %w", err)
	}

	fmt.Printf("progress version: %d\n", status.ProgressVersion)
	fmt.Printf("session version:  %d\n", status.SessionVersion)
	fmt.Printf("sync in progress: %v\n", status.SyncInProgress)
	if status.LastSync != nil {
		fmt.Printf("last sync:        %s\n", status.LastSync.Format("15:04:05"))
	}
	return nil
}
