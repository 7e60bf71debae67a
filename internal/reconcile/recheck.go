package reconcile

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	issueKeySeparatorConstant          = "|"
	issueKeyFileSeparatorConstant      = ","
	logMessageRecheckCompletedConstant = "recheck completed"
	logFieldResolvedConstant           = "resolved"
	logFieldPersistingConstant         = "persisting"
	logFieldIntroducedConstant         = "introduced"
	logFieldPreviousRunConstant        = "previous_run_id"
)

// ReportComparison describes how the issue set changed between two runs.
type ReportComparison struct {
	PreviousRunID string  `json:"previousRunId"`
	CurrentRunID  string  `json:"currentRunId"`
	PreviousScore float64 `json:"previousScore"`
	CurrentScore  float64 `json:"currentScore"`
	ScoreDelta    float64 `json:"scoreDelta"`
	Resolved      []Issue `json:"resolved"`
	Persisting    []Issue `json:"persisting"`
	Introduced    []Issue `json:"introduced"`
}

// IssueKey identifies an issue across runs by type, source, field, and affected files.
func IssueKey(issue Issue) string {
	affectedFiles := append([]string(nil), issue.AffectedFiles...)
	sort.Strings(affectedFiles)
	return strings.Join([]string{
		string(issue.Type),
		issue.SourceFile,
		string(issue.Field),
		strings.Join(affectedFiles, issueKeyFileSeparatorConstant),
	}, issueKeySeparatorConstant)
}

// CompareReports classifies previous issues as resolved or persisting and
// current issues absent from the previous run as introduced.
func CompareReports(previous ConsistencyReport, current ConsistencyReport) ReportComparison {
	previousKeys := make(map[string]struct{}, len(previous.Issues))
	for _, issue := range previous.Issues {
		previousKeys[IssueKey(issue)] = struct{}{}
	}
	currentKeys := make(map[string]struct{}, len(current.Issues))
	for _, issue := range current.Issues {
		currentKeys[IssueKey(issue)] = struct{}{}
	}

	comparison := ReportComparison{
		PreviousRunID: previous.RunID,
		CurrentRunID:  current.RunID,
		PreviousScore: previous.ConsistencyScore,
		CurrentScore:  current.ConsistencyScore,
		ScoreDelta:    math.Round((current.ConsistencyScore-previous.ConsistencyScore)*scorePrecisionConstant) / scorePrecisionConstant,
		Resolved:      make([]Issue, 0),
		Persisting:    make([]Issue, 0),
		Introduced:    make([]Issue, 0),
	}

	for _, issue := range previous.Issues {
		if _, stillPresent := currentKeys[IssueKey(issue)]; !stillPresent {
			comparison.Resolved = append(comparison.Resolved, issue)
		}
	}
	for _, issue := range current.Issues {
		if _, previouslyPresent := previousKeys[IssueKey(issue)]; previouslyPresent {
			comparison.Persisting = append(comparison.Persisting, issue)
			continue
		}
		comparison.Introduced = append(comparison.Introduced, issue)
	}

	return comparison
}

// Recheck re-runs reconciliation and compares the result with the report at
// previousReportPath. A report write failure still yields the comparison.
func (service *Service) Recheck(executionContext context.Context, previousReportPath string, options Options) (ConsistencyReport, ReportComparison, error) {
	previous, loadError := service.LoadReport(previousReportPath)
	if loadError != nil {
		return ConsistencyReport{}, ReportComparison{}, loadError
	}

	current, runError := service.Run(executionContext, options)
	if runError != nil && !errors.Is(runError, ErrReportWrite) {
		return ConsistencyReport{}, ReportComparison{}, runError
	}

	comparison := CompareReports(previous, current)
	service.logger.Info(logMessageRecheckCompletedConstant,
		zap.String(logFieldPreviousRunConstant, previous.RunID),
		zap.String(logFieldRunIdentifierConstant, current.RunID),
		zap.Int(logFieldResolvedConstant, len(comparison.Resolved)),
		zap.Int(logFieldPersistingConstant, len(comparison.Persisting)),
		zap.Int(logFieldIntroducedConstant, len(comparison.Introduced)),
	)
	return current, comparison, runError
}
