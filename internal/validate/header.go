// Package validate holds the header and row validation rules for uploaded
// files. Header validation gates an ingestion run; row validation silently
// filters individual lines so one bad row never aborts a good batch.
package validate

import (
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

// Headers reports whether the declared column names match the expected schema
// as a set: order-insensitive, no extras, no omissions. Duplicates collapse
// under the set comparison.
func Headers(cols []string) bool {
	got := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		got[c] = struct{}{}
	}
	if len(got) != len(model.Columns) {
		return false
	}
	for _, want := range model.Columns {
		if _, ok := got[want]; !ok {
			return false
		}
	}
	return true
}
