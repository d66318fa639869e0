package cli

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/sprite-ai/reqevo/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved runs, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		s, err := requireStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.List(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			printf(cmd, "No saved runs.\n")
			return nil
		}

		printf(cmd, "%s\n", runsTable(runs))
		return nil
	},
}

func runsTable(runs []store.Summary) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Name", "Domain", "Stage", "Iteration", "Changes", "Final", "Updated"})

	for _, r := range runs {
		final := ""
		if r.Finalized {
			final = "yes"
		}
		tbl.AppendRow(table.Row{
			r.Name,
			r.Domain,
			r.Stage.String(),
			strconv.Itoa(r.Iteration),
			strconv.Itoa(r.Records),
			final,
			humanize.Time(r.UpdatedAt),
		})
	}

	return tbl.Render()
}
