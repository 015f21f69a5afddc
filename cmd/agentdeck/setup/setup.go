package setup

import (
	"errors"
	"fmt"
	"os"

	"agentdeck/internal/config"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a default agentdeck configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		err := config.WriteDefault(path)
		if errors.Is(err, os.ErrExist) {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists: %s\n", path)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}
