// Package cli constructs the audit-reconcile command-line interface, wiring
// the Cobra command hierarchy, configuration loader, and structured logging
// primitives around the reconciliation engine.
package cli
