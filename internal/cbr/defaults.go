package cbr

import "slices"

// Defaults holds the identifiers a Client substitutes when a call leaves them
// unspecified, plus the column names cached for the active concept.
//
// A Defaults value may be created by the caller and shared with a Client via
// WithDefaults. It has no locking: mutate it from one goroutine only.
type Defaults struct {
	baseURL  string
	concept  string
	casebase string
	function string

	// columns is valid only while columnsFor equals concept.
	columns    []string
	columnsFor string
}

// NewDefaults returns an empty Defaults.
func NewDefaults() *Defaults { return &Defaults{} }

// BaseURL returns the server address of the client using these defaults.
func (d *Defaults) BaseURL() string { return d.baseURL }

// Concept returns the active concept id ("" when unset).
func (d *Defaults) Concept() string { return d.concept }

// Casebase returns the active casebase id ("" when unset).
func (d *Defaults) Casebase() string { return d.casebase }

// Function returns the active amalgamation function id ("" when unset).
func (d *Defaults) Function() string { return d.function }

// SetConcept makes id the active concept. An empty id is rejected and leaves
// the previous concept in place. Changing the concept drops the column cache;
// use Client.SetConcept to have it recomputed.
func (d *Defaults) SetConcept(id string) bool {
	if id == "" {
		return false
	}
	if id != d.concept {
		d.columns, d.columnsFor = nil, ""
	}
	d.concept = id
	return d.concept == id
}

// SetCasebase makes id the active casebase. An empty id is rejected.
func (d *Defaults) SetCasebase(id string) bool {
	if id == "" {
		return false
	}
	d.casebase = id
	return d.casebase == id
}

// SetFunction makes id the active amalgamation function. An empty id is rejected.
func (d *Defaults) SetFunction(id string) bool {
	if id == "" {
		return false
	}
	d.function = id
	return d.function == id
}

// ColumnNames returns the cached column names of the active concept: the case
// id column, the similarity column, then every attribute in server order.
// The second result is false when no cache exists for the active concept.
func (d *Defaults) ColumnNames() ([]string, bool) {
	if d.columns == nil || d.columnsFor != d.concept {
		return nil, false
	}
	return slices.Clone(d.columns), true
}

func (d *Defaults) setColumns(concept string, columns []string) {
	d.columns = slices.Clone(columns)
	d.columnsFor = concept
}
