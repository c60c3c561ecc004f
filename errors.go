package ecephys

import "fmt"

// ConflictingIdentifierError reports a table carrying both a column and
// an index named "id".
type ConflictingIdentifierError struct {
	Table string
}

func (e *ConflictingIdentifierError) Error() string {
	return fmt.Sprintf("table %s has both a column and an index named \"id\"", e.Table)
}

// MissingIdentifierError reports a table with no recognizable ids:
// neither a column nor an index named "id".
type MissingIdentifierError struct {
	Table   string
	Columns []string
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("unable to recognize ids in table %s (columns: %v)", e.Table, e.Columns)
}

// DuplicateUnitError reports a global unit id shared by more than one
// probe during unit table concatenation.
type DuplicateUnitError struct {
	ID int64
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("global unit id %d appears in more than one probe", e.ID)
}
