// Package harness runs YAML compile scenarios against the SQL compiler.
//
// # Scenario Format
//
//	name: pediatric_or_elderly
//	description: "Two age bands joined by UNION"
//	dialect: sqlite          # optional, sqlite|postgres
//	parameterized: false     # optional
//	fixtures:                # optional, seeded into an in-memory database
//	  - CREATE TABLE patients (subject_id INTEGER, anchor_age INTEGER)
//	  - INSERT INTO patients VALUES (1, 10), (2, 40)
//	request:
//	  output: [{table: patients, columns: [subject_id]}]
//	  query:
//	    operator: OR
//	    subqueries:
//	      - filters: [{filter_type: range, table: patients, column: anchor_age, min: 0, max: 18}]
//	assertions:
//	  - type: sql_contains
//	    value: "UNION"
//	  - type: set_op_count
//	    keyword: UNION
//	    count: 1
//	  - type: row_count
//	    count: 1
//	  - type: golden
//
// # Assertion Types
//
//   - sql_contains / sql_not_contains: substring checks on the statement
//   - set_op_count: number of lines that are exactly the keyword
//   - error_code: compilation must fail with this code
//   - row_count: rows returned when the statement runs against the fixtures
//   - golden: statement must equal golden/<name>.golden next to the scenario
//
// A compile error fails the scenario unless an error_code assertion is
// present.
package harness
