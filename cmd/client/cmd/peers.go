// cmd/client/cmd/peers.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List active peers on the LAN",
	RunE: func(cmd *cobra.Command, args []string) error {
		peers := session.Peers().ActivePeers()
		if len(peers) == 0 {
			fmt.Println("No active peers.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tADDRESS\tROLE\tLAST SEEN")
		for _, p := range peers {
			role := "peer"
			if p.IsHost {
				role = color.New(color.FgCyan).Sprint("host")
			}
			fmt.Fprintf(w, "%s\t%s:%d\t%s\t%s\n",
				p.Username, p.IPAddress, p.Port, role,
				p.LastSeen.Format("15:04:05"),
			)
		}
		return w.Flush()
	},
}
