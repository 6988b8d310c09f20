// Package store executes compiled cohort statements against a SQLite copy
// of the clinical database and keeps a history of runs in the same file.
//
// Results are read through a Cursor in fixed-size chunks so a large cohort
// never has to fit in memory. ExportCSV streams a cursor to any writer.
//
// # Database Configuration
//
// The clinical database belongs to the user. Open applies only
// connection-scoped pragmas:
//
//   - busy_timeout=5000: Wait up to 5s for locks
//   - foreign_keys=ON: Enforce referential integrity
//
// journal_mode and user_version are never changed. The history tables
// (cohort_runs, cohort_schema) are created by the first RecordRun, and
// OpenReadOnly gives a connection that cannot write at all.
//
// The pool holds a single connection. Close a Cursor before issuing another
// statement on the same Store.
package store
