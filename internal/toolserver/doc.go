// Package toolserver exposes reconciliation and recheck runs as Model Context
// Protocol tools served over stdio.
package toolserver
