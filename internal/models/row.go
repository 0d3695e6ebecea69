package models

// Row is one data row of an uploaded spreadsheet after validation.
// Exactly one of Query and ValidationError is set.
type Row struct {
	Index           int               // 0-based position among the data rows.
	Values          []string          // Raw cells in header order.
	Fields          map[string]string // Raw cells keyed by column name.
	Query           *Query
	ValidationError string
}

// Valid reports whether the row can be dispatched to a provider.
func (r Row) Valid() bool {
	return r.Query != nil && r.ValidationError == ""
}

// RowOutcome pairs an input row with its lookup result.
type RowOutcome struct {
	Row    Row
	Result ProviderResult
}

// BatchOutcome is index-aligned with the input rows: element i always belongs to row i.
type BatchOutcome []RowOutcome

// Failed counts the rows that did not produce a result.
func (o BatchOutcome) Failed() int {
	failed := 0
	for _, item := range o {
		if item.Result.Status != StatusSuccess {
			failed++
		}
	}

	return failed
}
