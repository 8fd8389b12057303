package pipeline

import (
	"fmt"
	"io"
	"strings"
)

// Separator closes the output of each pair. It is a SPARQL comment.
var Separator = "\n# " + strings.Repeat("=", 80) + "\n"

// Renderer writes pair results as a SPARQL update script
type Renderer struct {
	w           io.Writer
	header      string
	diagnostics bool
	started     bool
}

// NewRenderer creates a renderer that writes header once before the first
// pair. With diagnostics set, skipped rows are written as comments.
func NewRenderer(w io.Writer, header string, diagnostics bool) *Renderer {
	return &Renderer{w: w, header: header, diagnostics: diagnostics}
}

// InfoLine identifies a pair in the output
func InfoLine(r *PairResult) string {
	return fmt.Sprintf("changes for entity: %s between old_revid: %d and new_revid: %d",
		r.Pair.EntityID, r.Pair.OldRevID, r.Pair.NewRevID)
}

// Body returns the statements of a result, deletes first
func Body(r *PairResult) string {
	switch {
	case r.Delete == "":
		return r.Insert
	case r.Insert == "":
		return r.Delete
	default:
		return r.Delete + "\n" + r.Insert
	}
}

// Render writes one result. Everything but the prefix header and the
// statements is written as a comment, so the output parses as one update
// request.
func (r *Renderer) Render(res *PairResult) error {
	var b strings.Builder
	if !r.started {
		b.WriteString(r.header)
		b.WriteString("\n")
		r.started = true
	}

	b.WriteString("# ")
	b.WriteString(InfoLine(res))
	b.WriteString("\n\n")

	if res.Err != nil {
		fmt.Fprintf(&b, "# skipped: %s\n\n", oneLine(res.Err.Error()))
	} else if body := Body(res); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	if r.diagnostics {
		wrote := false
		for _, d := range res.Diagnostics {
			if d.Kind.Fatal() {
				continue
			}
			line := fmt.Sprintf("# %s: %s", d.Kind, d.Message)
			if d.Triple != "" {
				line += " (" + d.Triple + ")"
			}
			b.WriteString(oneLine(line))
			b.WriteString("\n")
			wrote = true
		}
		if wrote {
			b.WriteString("\n")
		}
	}

	b.WriteString(Separator)
	b.WriteString("\n\n")

	_, err := io.WriteString(r.w, b.String())
	return err
}

// RenderAll writes all results in order
func (r *Renderer) RenderAll(results []*PairResult) error {
	for _, res := range results {
		if err := r.Render(res); err != nil {
			return err
		}
	}
	return nil
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
