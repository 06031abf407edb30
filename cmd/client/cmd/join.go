// cmd/client/cmd/join.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var watchFlag bool

var joinCmd = &cobra.Command{
	Use:   "join <host-ip> [port]",
	Short: "Join a hosted mapart session",
	Long: `Authenticates against the host, registers this player on the LAN
and runs an initial sync of the progress and session documents.

With --watch the client stays connected: it keeps announcing itself via
discovery and re-syncs periodically until interrupted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := args[0]
		port := cfg.LAN.SyncPort
		if len(args) == 2 {
			p, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[1])
			}
			port = p
		}

		if !session.ConnectToHost(cmd.Context(), host, port) {
			return fmt.Errorf("could not connect to host %s:%d", host, port)
		}
		color.New(color.FgGreen).Printf("Connected to %s:%d as %s\n", host, port, cfg.Username)

		if !watchFlag {
			return nil
		}

		if err := session.StartDiscovery(); err != nil {
			return fmt.Errorf("start discovery: %w", err)
		}
		session.StartAutoSync(cmd.Context())
		fmt.Println("Watching session (Ctrl-C to leave)")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		session.Stop()
		return nil
	},
}

func init() {
	joinCmd.Flags().BoolVar(&watchFlag, "watch", false, "stay connected and sync periodically")
}
