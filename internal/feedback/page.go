package feedback

import (
	"html/template"
	"io"
)

var defaultTemplate = template.Must(template.New("review").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Review: {{.Batch.Domain}}</title></head>
<body>
<h1>Review: {{.Batch.Domain}}</h1>
<p>{{len .Batch.Records}} change(s), iteration {{.Batch.Iteration}}. The batch is available as <a href="/api/batch">JSON</a>.</p>
<form id="decision">
<textarea name="comment" rows="3" cols="80" placeholder="Global correction"></textarea><br>
<button type="button" data-action="approve">Approve</button>
<button type="button" data-action="retry">Re-analyze</button>
<button type="button" data-action="finish">Finish</button>
</form>
<script>
document.querySelectorAll("button[data-action]").forEach(function (b) {
  b.addEventListener("click", function () {
    var payload = {action: b.dataset.action, comment: document.querySelector("textarea[name=comment]").value};
    fetch({{.CallbackURL}} + "api/decision", {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(payload)})
      .then(function (r) { return r.json(); })
      .then(function (j) { document.body.insertAdjacentText("beforeend", j.status || j.error); });
  });
});
</script>
</body>
</html>
`))

func defaultPage(w io.Writer, b Batch, callbackURL string) error {
	return defaultTemplate.Execute(w, struct {
		Batch       Batch
		CallbackURL string
	}{b, callbackURL})
}
