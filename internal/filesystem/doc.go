// Package filesystem provides the operating-system backed file access used by
// the reconciliation engine, including atomic report writes.
package filesystem
