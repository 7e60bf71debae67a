// Package reconcile cross-references the generated migration artifacts (the
// Markdown audit, the JSON backlog, and the JSON impact graph) against the PHP
// sources they describe. Service drives a single stateless reconciliation run:
// it enumerates sources, derives the expected artifact paths, checks existence,
// flags duplicates and cross-artifact field disagreements, scores the result,
// and writes a ConsistencyReport as JSON.
//
// CommandBuilder and RecheckCommandBuilder wire the Cobra commands; the
// recheck workflow compares a fresh run with a previously written report.
package reconcile
