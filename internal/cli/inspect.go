package cli

import (
	"github.com/spf13/cobra"
	"github.com/sprite-ai/reqevo/internal/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <name>",
	Short: "Browse the changes of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		s, err := requireStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		run, err := s.Load(ctx, args[0])
		if err != nil {
			return err
		}
		return tui.Run(run)
	},
}
