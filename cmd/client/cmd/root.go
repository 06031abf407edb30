// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/voidfemme/nbt-mapart-helper/cmd/client/cmd/lock"
	"github.com/voidfemme/nbt-mapart-helper/cmd/client/cmd/sync"
	"github.com/voidfemme/nbt-mapart-helper/internal/app/client"
	"github.com/voidfemme/nbt-mapart-helper/internal/config"
	"github.com/voidfemme/nbt-mapart-helper/internal/utils/logger"
)

var (
	cfg     *config.Config
	log     *slog.Logger
	session *client.LANSession

	usernameFlag string
	dataDirFlag  string
	resolveFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "mapart",
	Short: "NBT Mapart Helper - collaborative mapart progress over LAN",
	Long: `NBT Mapart Helper keeps a chunk-by-chunk progress grid in sync
between players building the same mapart on a LAN.

One player hosts the session (mapart-server); everyone else joins it,
pushes their progress, and locks the chunks they are working on.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&usernameFlag, "username", "", "username on the LAN (default from MAPART_USERNAME)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "project data directory (default from MAPART_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&resolveFlag, "resolve", "prompt", "conflict resolution: prompt, local, remote or skip")

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(lock.LockCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg = config.MustLoad()
	if usernameFlag != "" {
		cfg.Username = usernameFlag
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}

	log = logger.New(cfg.Env)

	resolver, err := buildResolver(resolveFlag)
	if err != nil {
		return err
	}

	session = client.NewLANSession(cfg, resolver, log)
	cmd.SetContext(context.WithValue(cmd.Context(), client.SessionKey, session))
	return nil
}

func buildResolver(mode string) (client.ConflictResolver, error) {
	switch mode {
	case "prompt":
		return client.NewPromptResolver(log), nil
	case "local":
		return client.NewPolicyResolver(client.ResolutionKeepLocal), nil
	case "remote":
		return client.NewPolicyResolver(client.ResolutionTakeRemote), nil
	case "skip":
		return client.NewPolicyResolver(client.ResolutionSkip), nil
	default:
		return nil, fmt.Errorf("unknown --resolve mode %q", mode)
	}
}
