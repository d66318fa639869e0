package report

import (
	"html/template"
	"io"

	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/diff"
	"github.com/sprite-ai/reqevo/internal/model"
)

type htmlRecord struct {
	model.ChangeRecord
	Label string
	Lines []diff.HighlightedLine
}

type htmlPage struct {
	Domain       string
	VersionCount int
	Iteration    int
	Records      []htmlRecord
	Reasons      []catalog.Entry
	Editable     bool
	Final        bool
	CallbackURL  string

	Pending, Classified, Failed int
}

// WriteHTML renders the report page. Edit controls are included only when the
// run is not final and a callback URL is known.
func WriteHTML(w io.Writer, in Input) error {
	page := htmlPage{
		Domain:       in.domain(),
		VersionCount: versionCount(in),
		Iteration:    in.Iteration,
		Reasons:      in.catalog().Reasons,
		Editable:     !in.Final && in.CallbackURL != "",
		Final:        in.Final,
		CallbackURL:  in.CallbackURL,
	}
	page.Pending, page.Classified, page.Failed = model.Tally(in.Records)

	page.Records = make([]htmlRecord, len(in.Records))
	for i, r := range in.Records {
		page.Records[i] = htmlRecord{
			ChangeRecord: r,
			Label:        r.Classification.Reason.Label(),
			Lines:        diff.HighlightDiff(r.DiffText),
		}
	}
	return reportTemplate.Execute(w, page)
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Requirement Evolution: {{.Domain}}</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 1200px; margin: 40px auto; padding: 0 20px; background: #282a36; color: #f8f8f2; }
  h1 { color: #bd93f9; }
  .summary { background: #343746; padding: 16px; border-radius: 8px; margin-bottom: 24px; }
  .summary span { margin-right: 24px; }
  table { width: 100%; border-collapse: collapse; }
  th { text-align: left; padding: 8px 12px; background: #44475a; }
  td { padding: 8px 12px; border-bottom: 1px solid #44475a; vertical-align: top; }
  pre.diff { background: #343746; padding: 10px; border-radius: 4px; white-space: pre-wrap; margin: 6px 0 0; }
  .meta { color: #6272a4; font-size: 0.85em; }
  .reason { font-weight: bold; color: #8be9fd; }
  .status-error .reason { color: #ff5555; }
  .status-pending .reason { color: #f1fa8c; }
  .final { color: #50fa7b; }
  textarea, select { background: #44475a; color: #f8f8f2; border: 1px solid #6272a4; border-radius: 4px; }
  button { background: #bd93f9; color: #282a36; border: 0; border-radius: 4px; padding: 8px 16px; margin-right: 8px; cursor: pointer; }
  #result { margin-top: 12px; }
  footer { margin-top: 32px; color: #6272a4; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Requirement Evolution: {{.Domain}}</h1>
<div class="summary">
  <span>Versions: <strong>{{.VersionCount}}</strong></span>
  <span>Changes: <strong>{{len .Records}}</strong></span>
  <span>Classified: {{.Classified}}</span>
  <span>Pending: {{.Pending}}</span>
  <span>Errors: {{.Failed}}</span>
  {{if .Iteration}}<span>Iteration: {{.Iteration}}</span>{{end}}
  {{if .Final}}<span class="final">Final</span>{{end}}
</div>
{{if .Records}}
<form id="review">
<table>
<thead><tr><th>Diff ID</th><th>Change</th><th>Analysis</th></tr></thead>
<tbody>
{{range $rec := .Records}}
<tr class="status-{{$rec.Classification.Status}}" id="diff-{{$rec.DiffID}}">
<td>{{$rec.DiffID}}</td>
<td>
  <div class="meta">Version {{$rec.OldVersionID}}{{if $rec.OldCommit}} ({{$rec.OldCommit}}{{if $rec.OldDate}}, {{$rec.OldDate}}{{end}}){{end}} &rarr; Version {{$rec.NewVersionID}}{{if $rec.NewCommit}} ({{$rec.NewCommit}}{{if $rec.NewDate}}, {{$rec.NewDate}}{{end}}){{end}}</div>
  <pre class="diff">{{range $i, $line := $rec.Lines}}{{if $i}}
{{end}}{{range $line.Tokens}}{{if .Color}}<span style="color: {{.Color}}">{{.Text}}</span>{{else}}{{.Text}}{{end}}{{end}}{{end}}</pre>
</td>
<td>
  <div class="reason">{{$rec.Label}}</div>
  <p>{{$rec.Classification.Explanation}}</p>
  {{if $.Editable}}
  <select name="reason_{{$rec.DiffID}}">
    <option value="">(keep)</option>
    {{range $.Reasons}}<option value="{{.Kind}}">{{.Label}}</option>{{end}}
  </select><br>
  <textarea name="explanation_{{$rec.DiffID}}" rows="2" cols="40" placeholder="Corrected explanation"></textarea>
  {{end}}
</td>
</tr>
{{end}}
</tbody>
</table>
{{if .Editable}}
<p><textarea name="comment" rows="3" cols="100" placeholder="Correction for every change (used when no change is edited)"></textarea></p>
<button type="button" data-action="approve">Approve</button>
<button type="button" data-action="retry">Re-analyze</button>
<button type="button" data-action="finish">Finish</button>
<div id="result"></div>
{{end}}
</form>
{{else}}
<p class="final">No changes between versions.</p>
{{end}}
{{if .Editable}}
<script>
document.querySelectorAll("button[data-action]").forEach(function (b) {
  b.addEventListener("click", function () {
    var payload = {action: b.dataset.action};
    document.querySelectorAll("#review select, #review textarea").forEach(function (el) {
      if (el.value.trim() !== "") { payload[el.name] = el.value; }
    });
    fetch({{.CallbackURL}} + "api/decision", {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(payload)})
      .then(function (r) { return r.json(); })
      .then(function (j) { document.getElementById("result").textContent = j.status || j.error; });
  });
});
</script>
{{end}}
<footer>Generated by <strong>reqevo</strong></footer>
</body>
</html>
`))
