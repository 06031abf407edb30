// cmd/client/cmd/status.go
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusHost string
	statusPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Long: `Shows the local node's view of the session: document versions,
held locks and active users.

With --host the status is fetched from the hosting node instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusHost != "" {
			return remoteStatus(cmd, statusHost, statusPort)
		}
		return localStatus()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusHost, "host", "", "fetch status from this host instead")
	statusCmd.Flags().IntVar(&statusPort, "port", 0, "host sync port (default from config)")
}

func remoteStatus(cmd *cobra.Command, host string, port int) error {
	if port == 0 {
		port = cfg.LAN.SyncPort
	}
	httpClient, err := session.Dial(cmd.Context(), host, port)
	if err != nil {
		return err
	}

	status, err := httpClient.GetStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}

	color.New(color.Bold).Printf("Host %s:%d\n", host, port)
	fmt.Printf("  progress version: %d\n", status.ProgressVersion)
	fmt.Printf("  session version:  %d\n", status.SessionVersion)
	fmt.Printf("  active peers:     %d\n", status.ActivePeers)
	fmt.Printf("  sync in progress: %v\n", status.SyncInProgress)
	if status.LastSync != nil {
		fmt.Printf("  last sync:        %s\n", status.LastSync.Format("15:04:05"))
	}
	return nil
}

func localStatus() error {
	tracker := session.Tracker()

	color.New(color.Bold).Printf("Session for %s\n", cfg.Username)
	fmt.Printf("  progress version: %d\n", tracker.GetCurrentVersion(cfg.ProgressFile()))
	fmt.Printf("  session version:  %d\n", tracker.GetCurrentVersion(cfg.SessionFile()))

	if owned := session.Locks().OwnedLocks(); len(owned) > 0 {
		fmt.Printf("  held locks:       %v\n", owned)
	}

	users := session.Locks().GetActiveUsers()
	if len(users) > 0 {
		fmt.Println("  active users:")
		for _, u := range users {
			fmt.Printf("    %s (last active %s)\n", u.Username, u.LastActive.Format("15:04:05"))
		}
	}
	return nil
}
