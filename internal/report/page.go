package report

import (
	"io"

	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/feedback"
)

// ReviewPage renders a gate batch with edit controls posting to callbackURL.
// It satisfies feedback.PageFunc.
func ReviewPage(w io.Writer, b feedback.Batch, callbackURL string) error {
	in := Input{
		Domain:       b.Domain,
		VersionCount: b.VersionCount,
		Records:      b.Records,
		Iteration:    b.Iteration,
		CallbackURL:  callbackURL,
	}
	if len(b.Reasons) > 0 {
		in.Catalog = &catalog.Catalog{Reasons: b.Reasons}
	}
	return WriteHTML(w, in)
}

var _ feedback.PageFunc = ReviewPage
