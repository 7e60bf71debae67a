package main

import (
	"fmt"
	"os"

	"github.com/temirov/auditrecon/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the audit-reconcile command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
