// Package ir holds the foundational types shared by every other cohort
// package: the typed compile error, canonical JSON, and content hashes.
//
// ir imports nothing internal. Everything else may import ir.
//
// Key design constraints:
//   - Errors carry a stable string code that callers switch on
//   - Canonical JSON forbids floats and null so hashes stay stable
//   - Numeric literals travel as strings, never as float64
package ir
