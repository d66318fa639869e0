package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sprite-ai/reqevo/internal/model"
)

// Table formats for WriteTable.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

var tableHeader = table.Row{"ID", "Versions", "Reason", "Change", "Explanation"}

// WriteTable writes one row per change record as a plain text or markdown table.
func WriteTable(w io.Writer, in Input, format string) error {
	var out string
	switch format {
	case FormatText, "":
		out = fmt.Sprintf("%s (%d versions)\n%s", in.domain(), versionCount(in), textTable(in.Records))
	case FormatMarkdown:
		out = fmt.Sprintf("## Requirement Evolution: %s\n\n**Versions:** %d\n\n%s",
			in.domain(), versionCount(in), markdownTable(in.Records))
	default:
		return fmt.Errorf("unknown table format %q", format)
	}

	_, err := io.WriteString(w, out+"\n")
	return err
}

func textTable(records []model.ChangeRecord) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Number: 5, WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
	})

	tbl.AppendHeader(tableHeader)
	for _, r := range records {
		tbl.AppendRow(table.Row{
			r.DiffID,
			versionPair(r),
			r.Classification.Reason.Label(),
			r.DiffText,
			r.Classification.Explanation,
		})
	}

	pending, classified, failed := model.Tally(records)
	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("%d changes", len(records)),
		fmt.Sprintf("%d classified, %d pending, %d errors", classified, pending, failed), ""})
	return tbl.Render()
}

// markdownTable flattens multi-line cells, which markdown rows cannot hold.
func markdownTable(records []model.ChangeRecord) string {
	tbl := table.NewWriter()
	tbl.AppendHeader(tableHeader)
	for _, r := range records {
		tbl.AppendRow(table.Row{
			r.DiffID,
			versionPair(r),
			r.Classification.Reason.Label(),
			"`" + strings.ReplaceAll(r.DiffText, "\n", "` `") + "`",
			strings.ReplaceAll(r.Classification.Explanation, "\n", " "),
		})
	}
	return tbl.RenderMarkdown()
}

func versionPair(r model.ChangeRecord) string {
	return fmt.Sprintf("%d -> %d", r.OldVersionID, r.NewVersionID)
}

func versionCount(in Input) int {
	if in.VersionCount == 0 {
		return len(in.Versions)
	}
	return in.VersionCount
}
