package reconcile

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	summaryTitleTemplateConstant      = "Audit consistency report (%s)"
	summaryMetricHeaderConstant       = "Metric"
	summaryValueHeaderConstant        = "Value"
	summarySourceFilesLabelConstant   = "Source files"
	summaryArtifactsLabelConstant     = "Artifacts checked"
	summaryMissingLabelConstant       = "Missing"
	summaryDuplicateLabelConstant     = "Duplicate"
	summaryInconsistentLabelConstant  = "Inconsistent"
	summaryUnreadableLabelConstant    = "Unreadable"
	summaryScoreLabelConstant         = "Consistency score"
	summaryScoreTemplateConstant      = "%.1f / 10"
	summaryReportPathLabelConstant    = "Report"
	summaryRecheckTitleConstant       = "Recheck against %s"
	summaryResolvedLabelConstant      = "Resolved"
	summaryPersistingLabelConstant    = "Persisting"
	summaryIntroducedLabelConstant    = "Introduced"
	summaryScoreDeltaLabelConstant    = "Score delta"
	summaryScoreDeltaTemplateConstant = "%+.1f"
	summaryLineTerminatorConstant     = "\n"
)

// RenderSummary writes a human-readable table describing the report.
func RenderSummary(writer io.Writer, report ConsistencyReport, outputPath string) error {
	counts := report.IssueCounts()

	summaryTable := newSummaryTable()
	summaryTable.AppendRows([]table.Row{
		{summarySourceFilesLabelConstant, report.TotalSourceFiles},
		{summaryArtifactsLabelConstant, report.TotalFilesChecked},
		{summaryMissingLabelConstant, counts[IssueTypeMissing]},
		{summaryDuplicateLabelConstant, counts[IssueTypeDuplicate]},
		{summaryInconsistentLabelConstant, counts[IssueTypeInconsistent]},
		{summaryUnreadableLabelConstant, len(report.UnreadableFiles)},
	})
	summaryTable.AppendFooter(table.Row{summaryScoreLabelConstant, fmt.Sprintf(summaryScoreTemplateConstant, report.ConsistencyScore)})
	if len(outputPath) > 0 {
		summaryTable.AppendRow(table.Row{summaryReportPathLabelConstant, outputPath})
	}

	return writeSummary(writer, fmt.Sprintf(summaryTitleTemplateConstant, report.Timestamp), summaryTable)
}

// RenderRecheckSummary writes a table describing how issues changed between runs.
func RenderRecheckSummary(writer io.Writer, comparison ReportComparison, previousReportPath string) error {
	summaryTable := newSummaryTable()
	summaryTable.AppendRows([]table.Row{
		{summaryResolvedLabelConstant, len(comparison.Resolved)},
		{summaryPersistingLabelConstant, len(comparison.Persisting)},
		{summaryIntroducedLabelConstant, len(comparison.Introduced)},
	})
	summaryTable.AppendFooter(table.Row{summaryScoreDeltaLabelConstant, fmt.Sprintf(summaryScoreDeltaTemplateConstant, comparison.ScoreDelta)})

	return writeSummary(writer, fmt.Sprintf(summaryRecheckTitleConstant, previousReportPath), summaryTable)
}

// writeSummary prints the title above the table so it is never wrapped to the column width.
func writeSummary(writer io.Writer, title string, summaryTable table.Writer) error {
	_, writeError := io.WriteString(writer, title+summaryLineTerminatorConstant+summaryTable.Render()+summaryLineTerminatorConstant)
	return writeError
}

func newSummaryTable() table.Writer {
	summaryTable := table.NewWriter()
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	summaryTable.SetStyle(style)
	summaryTable.AppendHeader(table.Row{summaryMetricHeaderConstant, summaryValueHeaderConstant})
	summaryTable.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return summaryTable
}
