// Package discovery enumerates the source files that drive artifact generation.
package discovery
