package reconcile_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	fixtureFilePermissions       = 0o644
	fixtureDirectoryPermissions  = 0o755
	fixtureSourceContent         = "<?php\necho 'legacy';\n"
	fixtureSubtestNameTemplate   = "%d_%s"
	fixtureReportRelativePath    = "reports/audit_consistency_report.json"
	fixtureConsistentNarrative   = "# Users controller\n\n**Route:** /users\n- Table: `users`\nType: controller\n"
	fixtureConsistentBacklog     = "{\n  \"route\": \"/users\",\n  \"table\": \"users\",\n  \"type\": \"controller\",\n  \"tasks\": []\n}\n"
	fixtureConsistentImpactGraph = "{\n  \"route\": \"/users\",\n  \"table\": \"users\",\n  \"type\": \"controller\",\n  \"nodes\": [],\n  \"edges\": []\n}\n"
)

var fixtureTimestamp = time.Date(2024, time.March, 1, 12, 30, 0, 0, time.UTC)

type fixedClock struct {
	instant time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.instant
}

func writeFixture(testInstance *testing.T, rootDirectory string, relativePath string, content string) {
	testInstance.Helper()
	fixturePath := filepath.Join(rootDirectory, filepath.FromSlash(relativePath))
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(fixturePath), fixtureDirectoryPermissions))
	require.NoError(testInstance, os.WriteFile(fixturePath, []byte(content), fixtureFilePermissions))
}

func writeConsistentArtifacts(testInstance *testing.T, rootDirectory string, stem string) {
	testInstance.Helper()
	writeFixture(testInstance, rootDirectory, "audits/"+stem+".audit.md", fixtureConsistentNarrative)
	writeFixture(testInstance, rootDirectory, "audits/"+stem+".backlog.json", fixtureConsistentBacklog)
	writeFixture(testInstance, rootDirectory, "audits/"+stem+".impact_graph.json", fixtureConsistentImpactGraph)
}

func fixtureSubtestName(testCaseIndex int, name string) string {
	return fmt.Sprintf(fixtureSubtestNameTemplate, testCaseIndex, name)
}
