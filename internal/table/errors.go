package table

import "fmt"

// MissingColumnError reports that a stage expected a column its input lacks.
// It is fatal for the stage.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("table %s: missing column %q", e.Table, e.Column)
}

// DuplicateColumnError reports that an operation would produce two columns
// with the same name.
type DuplicateColumnError struct {
	Table  string
	Column string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("table %s: duplicate column %q", e.Table, e.Column)
}
