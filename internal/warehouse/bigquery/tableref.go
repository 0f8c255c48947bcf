package bigquery

import (
	"fmt"
	"strings"
)

// TableRef identifies a table as project.dataset.table.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func ParseTableRef(s string) (TableRef, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "`"), ".")
	if len(parts) != 3 {
		return TableRef{}, fmt.Errorf("invalid table id %q: want project.dataset.table", s)
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "` ") {
			return TableRef{}, fmt.Errorf("invalid table id %q: want project.dataset.table", s)
		}
	}
	return TableRef{ProjectID: parts[0], DatasetID: parts[1], TableID: parts[2]}, nil
}

func (r TableRef) String() string {
	return r.ProjectID + "." + r.DatasetID + "." + r.TableID
}

// Quoted returns the reference quoted for use in standard SQL.
func (r TableRef) Quoted() string {
	return "`" + r.String() + "`"
}
