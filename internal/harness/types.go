package harness

// Result is the outcome of one scenario.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	SQL         string `json:"sql,omitempty"`
	Args        []any  `json:"args,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`

	// ErrorCode is set when compilation failed.
	ErrorCode string `json:"error_code,omitempty"`

	// RowCount is set when the statement was executed against fixtures.
	RowCount *int64 `json:"row_count,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult(name string) *Result {
	return &Result{Name: name, Pass: true, Errors: []string{}}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
