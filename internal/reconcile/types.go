package reconcile

import "time"

// ArtifactKind names one class of derived artifact.
type ArtifactKind string

// Artifact kinds produced by the migration tooling.
const (
	ArtifactKindNarrativeReport   ArtifactKind = "narrative-report"
	ArtifactKindStructuredBacklog ArtifactKind = "structured-backlog"
	ArtifactKindImpactGraph       ArtifactKind = "impact-graph"
)

// ArtifactFormat selects the parser applied to an artifact kind.
type ArtifactFormat string

// Supported artifact formats.
const (
	ArtifactFormatMarkdown    ArtifactFormat = "markdown"
	ArtifactFormatBacklog     ArtifactFormat = "backlog-json"
	ArtifactFormatImpactGraph ArtifactFormat = "impact-graph-json"
)

// IssueType classifies a detected problem.
type IssueType string

// Issue types emitted by a reconciliation run.
const (
	IssueTypeMissing      IssueType = "missing"
	IssueTypeDuplicate    IssueType = "duplicate"
	IssueTypeInconsistent IssueType = "inconsistent"
)

// SemanticField names a value shared across artifact kinds.
type SemanticField string

// Shared semantic fields.
const (
	SemanticFieldRoute SemanticField = "route"
	SemanticFieldTable SemanticField = "table"
	SemanticFieldType  SemanticField = "type"
)

// semanticFieldOrder fixes the order in which field checks emit issues.
var semanticFieldOrder = []SemanticField{SemanticFieldRoute, SemanticFieldTable, SemanticFieldType}

// FieldSet holds the non-empty semantic fields extracted from one artifact.
type FieldSet map[SemanticField]string

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// SourceRecord is one originating file discovered by the tree walk.
type SourceRecord struct {
	// SourcePath is relative to the base path, slash separated, and unique within a run.
	SourcePath   string
	AbsolutePath string
	Stem         string
}

// ExpectedArtifact is a derived file required for a source.
type ExpectedArtifact struct {
	SourcePath   string       `json:"sourceFile"`
	Path         string       `json:"path"`
	Kind         ArtifactKind `json:"kind"`
	Exists       bool         `json:"exists"`
	LastModified *time.Time   `json:"lastModified,omitempty"`

	absolutePath string
}

// Issue is a detected problem. Issues are report data, never errors.
type Issue struct {
	Type          IssueType           `json:"type"`
	Description   string              `json:"description"`
	SourceFile    string              `json:"sourceFile"`
	AffectedFiles []string            `json:"affectedFiles"`
	Field         SemanticField       `json:"field,omitempty"`
	Values        map[string][]string `json:"values,omitempty"`
}

// FieldInconsistency groups artifact paths by the value they reported for one field.
type FieldInconsistency struct {
	Field  SemanticField       `json:"field"`
	Values map[string][]string `json:"values"`
}

// ConsistencyReport is the output of one reconciliation run.
type ConsistencyReport struct {
	RunID             string                          `json:"runId"`
	Timestamp         string                          `json:"timestamp"`
	BasePath          string                          `json:"basePath"`
	TotalSourceFiles  int                             `json:"totalSourceFiles"`
	TotalFilesChecked int                             `json:"totalFilesChecked"`
	Issues            []Issue                         `json:"issues"`
	ConsistencyScore  float64                         `json:"consistencyScore"`
	MissingFiles      []string                        `json:"missingFiles"`
	DuplicateFiles    []string                        `json:"duplicateFiles"`
	UnreadableFiles   []string                        `json:"unreadableFiles"`
	Inconsistencies   map[string][]FieldInconsistency `json:"inconsistencies"`
}

// IssueCounts tallies report issues by type.
func (report ConsistencyReport) IssueCounts() map[IssueType]int {
	counts := map[IssueType]int{
		IssueTypeMissing:      0,
		IssueTypeDuplicate:    0,
		IssueTypeInconsistent: 0,
	}
	for _, issue := range report.Issues {
		counts[issue.Type]++
	}
	return counts
}

// Options configures a single reconciliation run.
type Options struct {
	BasePath            string
	OutputPath          string
	SourceExtension     string
	ArtifactsDirectory  string
	ExcludedDirectories []string
	Kinds               KindCatalog
	Parallelism         int
}
