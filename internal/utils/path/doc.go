// Package pathutils normalizes user-supplied filesystem paths before they reach
// the reconciliation engine.
package pathutils
