package api

// CompileResponse is returned by POST /v1/compile.
type CompileResponse struct {
	SQL         string `json:"sql"`
	Args        []any  `json:"args,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Dialect     string `json:"dialect"`
}

// ValidateResponse is returned by POST /v1/validate.
type ValidateResponse struct {
	Clean       bool     `json:"clean"`
	Warnings    []string `json:"warnings"`
	Fingerprint string   `json:"fingerprint"`
}

// TablesResponse is returned by GET /v1/tables.
type TablesResponse struct {
	Root     string      `json:"root"`
	Contexts []string    `json:"contexts"`
	Tables   []TableInfo `json:"tables"`
}

// TableInfo describes one table of the schema graph.
type TableInfo struct {
	Name    string     `json:"name"`
	Parents []LinkInfo `json:"parents,omitempty"`
}

// LinkInfo is one parent link. Context is empty for links that are always
// active.
type LinkInfo struct {
	Parent       string `json:"parent"`
	ParentColumn string `json:"parent_column"`
	LocalColumn  string `json:"local_column"`
	Context      string `json:"context,omitempty"`
}

// ErrorResponse wraps every failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the compile error fields.
type ErrorBody struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Table    string   `json:"table,omitempty"`
	Path     string   `json:"path,omitempty"`
	Warnings []string `json:"warnings,omitempty"` // validate only
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Tables int    `json:"tables"`
}
