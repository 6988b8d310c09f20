// Package queryir defines the predicate tree a cohort request compiles
// from: AND/OR nodes holding leaf filters, plus the requested output
// columns.
//
// Filter is a sealed interface using the marker method pattern. Only the
// three variants in this package implement it, so backends can switch on
// them exhaustively:
//
//	switch f := filter.(type) {
//	case Equality:
//	    // table.column = 'value'
//	case Range:
//	    // table.column BETWEEN min AND max
//	case Readmission:
//	    // hadm_id readmitted within N days
//	}
//
// Requests arrive as JSON or YAML and are decoded with DecodeRequest. The
// wire shape and the legacy keys it still accepts are documented on
// RequestSpec.
//
// Numeric literals are carried as their source text (Literal) and never
// pass through float64, so "1e999" reaches the SQL unchanged.
package queryir
