package reconcile_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/auditrecon/internal/reconcile"
)

func TestRenderSummaryListsIssueCounts(testInstance *testing.T) {
	report := reconcile.ConsistencyReport{
		Timestamp:         "2024-03-01T12:30:00Z",
		TotalSourceFiles:  2,
		TotalFilesChecked: 6,
		Issues: []reconcile.Issue{
			{Type: reconcile.IssueTypeMissing},
			{Type: reconcile.IssueTypeMissing},
			{Type: reconcile.IssueTypeInconsistent},
		},
		UnreadableFiles:  []string{"audits/foo.backlog.json"},
		ConsistencyScore: 5,
	}

	outputBuffer := &bytes.Buffer{}
	require.NoError(testInstance, reconcile.RenderSummary(outputBuffer, report, "reports/out.json"))

	rendered := outputBuffer.String()
	renderedLines := strings.Split(rendered, "\n")
	require.Equal(testInstance, "Audit consistency report (2024-03-01T12:30:00Z)", renderedLines[0])
	require.Contains(testInstance, rendered, "Artifacts checked")
	require.Contains(testInstance, rendered, "5.0 / 10")
	require.Contains(testInstance, rendered, "reports/out.json")
	require.Equal(testInstance, map[reconcile.IssueType]int{
		reconcile.IssueTypeMissing:      2,
		reconcile.IssueTypeDuplicate:    0,
		reconcile.IssueTypeInconsistent: 1,
	}, report.IssueCounts())
}

func TestRenderRecheckSummaryShowsScoreDelta(testInstance *testing.T) {
	comparison := reconcile.ReportComparison{
		ScoreDelta: -1.5,
		Resolved:   []reconcile.Issue{{Type: reconcile.IssueTypeMissing}},
		Introduced: []reconcile.Issue{{Type: reconcile.IssueTypeDuplicate}, {Type: reconcile.IssueTypeMissing}},
	}

	outputBuffer := &bytes.Buffer{}
	require.NoError(testInstance, reconcile.RenderRecheckSummary(outputBuffer, comparison, "previous.json"))

	rendered := outputBuffer.String()
	require.Equal(testInstance, "Recheck against previous.json", strings.Split(rendered, "\n")[0])
	require.Contains(testInstance, rendered, "-1.5")
	require.Contains(testInstance, rendered, "Persisting")
}

func TestRenderSummaryKeepsLongReportPathIntact(testInstance *testing.T) {
	longReportPath := "/var/lib/migration/workspaces/legacy-storefront/reports/audit_consistency_report.json"

	outputBuffer := &bytes.Buffer{}
	require.NoError(testInstance, reconcile.RenderRecheckSummary(outputBuffer, reconcile.ReportComparison{}, longReportPath))
	require.Contains(testInstance, outputBuffer.String(), longReportPath)

	outputBuffer.Reset()
	require.NoError(testInstance, reconcile.RenderSummary(outputBuffer, reconcile.ConsistencyReport{Timestamp: "2024-03-01T12:30:00Z"}, longReportPath))
	require.Contains(testInstance, outputBuffer.String(), longReportPath)
}
