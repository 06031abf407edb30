package lock

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/voidfemme/nbt-mapart-helper/internal/app/client"
)

var (
	lockHost string
	lockPort int
)

var LockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage chunk locks",
	Long: `Acquire, release and inspect chunk locks.

Without --host the lock lives in the shared session file on this
machine. With --host the lock is taken on the hosting node and
attributed to this player there.`,
}

var acquireCmd = &cobra.Command{
	Use:   "acquire <chunk>",
	Short: "Lock a chunk before working on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		resourceID := args[0]

		var locked bool
		if lockHost != "" {
			httpClient, err := session.Dial(cmd.Context(), lockHost, lockPort)
			if err != nil {
				return err
			}
			locked, err = httpClient.AcquireLock(cmd.Context(), resourceID)
			if err != nil {
				return err
			}
		} else {
			locked = session.Locks().Acquire(resourceID)
		}

		if !locked {
			if info := session.Locks().GetLockInfo(resourceID); info != nil {
				return fmt.Errorf("chunk %s is locked by %s", resourceID, info.Username)
			}
			return fmt.Errorf("could not lock chunk %s", resourceID)
		}

		color.New(color.FgGreen).Printf("Locked %s\n", resourceID)
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <chunk>",
	Short: "Release a chunk lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		resourceID := args[0]

		var released bool
		if lockHost != "" {
			httpClient, err := session.Dial(cmd.Context(), lockHost, lockPort)
			if err != nil {
				return err
			}
			released, err = httpClient.ReleaseLock(cmd.Context(), resourceID)
			if err != nil {
				return err
			}
		} else {
			released = session.Locks().Release(resourceID)
		}

		if !released {
			return fmt.Errorf("chunk %s was not held by you", resourceID)
		}

		color.New(color.FgGreen).Printf("Released %s\n", resourceID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <chunk>",
	Short: "Show who holds a chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		resourceID := args[0]

		info := session.Locks().GetLockInfo(resourceID)
		if info == nil {
			fmt.Printf("Chunk %s is unlocked.\n", resourceID)
			return nil
		}

		fmt.Printf("Chunk %s is locked by %s since %s\n",
			resourceID, info.Username, info.Timestamp.Format("15:04:05"))
		return nil
	},
}

func sessionFrom(cmd *cobra.Command) (*client.LANSession, error) {
	session, ok := client.SessionFromContext(cmd.Context())
	if !ok {
		return nil, fmt.Errorf("session not initialized")
	}
	return session, nil
}

func init() {
	LockCmd.PersistentFlags().StringVar(&lockHost, "host", "", "take the lock on this host instead of locally")
	LockCmd.PersistentFlags().IntVar(&lockPort, "port", 8080, "host sync port")

	LockCmd.AddCommand(acquireCmd)
	LockCmd.AddCommand(releaseCmd)
	LockCmd.AddCommand(statusCmd)
}
