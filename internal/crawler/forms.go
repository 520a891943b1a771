package crawler

import (
	"cmp"
	"slices"
	"strings"

	"github.com/nao1215/privacygap/internal/model"
)

const (
	maxFieldNameLen  = 50
	maxFormActionLen = 100
)

// skippedInputTypes never collect data from the visitor.
var skippedInputTypes = []string{"hidden", "submit", "button", "csrf", "token"}

// detectForms converts the page's forms into evidence. Forms without a
// visible field are dropped. source is recorded on every form.
func detectForms(page *model.Page, source string) []model.Form {
	out := make([]model.Form, 0)
	for _, f := range page.Forms {
		fields := make([]model.FormField, 0, len(f.Inputs))
		for _, in := range f.Inputs {
			if slices.Contains(skippedInputTypes, in.Type) {
				continue
			}
			fields = append(fields, model.FormField{
				Name:      truncate(cmp.Or(in.Name, in.ID, in.Placeholder, "unknown"), maxFieldNameLen),
				InputType: in.Type,
				Required:  in.Required,
			})
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, model.Form{
			Action: truncate(cmp.Or(f.Action, "self"), maxFormActionLen),
			Method: strings.ToUpper(cmp.Or(f.Method, "GET")),
			Fields: fields,
			Source: source,
		})
	}
	return out
}
