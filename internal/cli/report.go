package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/model"
	"github.com/sprite-ai/reqevo/internal/report"
)

const (
	formatJSON = "json"
	formatHTML = "html"
)

var reportCmd = &cobra.Command{
	Use:   "report <name>",
	Short: "Print or render the report of a saved run",
	Long: `Print a saved run as a text or markdown table, or as the output.json
document. The html format writes report.html and output.json into the
output directory and prints the report path.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringP("format", "f", report.FormatText, "output format: text, markdown, json, html")
}

func reportInput(run *model.RunState) report.Input {
	return report.Input{
		Domain:       run.Domain,
		VersionCount: len(run.Versions),
		Records:      run.Records,
		Versions:     run.Versions,
		Catalog:      catalog.Default(),
		Iteration:    run.Iteration,
		Final:        true,
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case report.FormatText, report.FormatMarkdown, formatJSON, formatHTML:
	default:
		return fmt.Errorf("unknown format %q: want text, markdown, json or html", format)
	}

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
	in := reportInput(run)

	switch format {
	case formatJSON:
		return report.WriteJSON(cmd.OutOrStdout(), in)
	case formatHTML:
		path, err := report.NewReporter(cfg.OutputDir, report.WithLogger(logger)).Render(ctx, in)
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", path)
		return nil
	default:
		return report.WriteTable(cmd.OutOrStdout(), in, format)
	}
}
