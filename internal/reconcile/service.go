package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/auditrecon/internal/discovery"
)

const (
	timestampLayoutConstant = time.RFC3339

	basePathUnavailableMessageConstant      = "base path unavailable"
	reportWriteMessageConstant              = "report write failed"
	basePathResolveErrorTemplateConstant    = "%w: %s: %w"
	basePathNotDirectoryTemplateConstant    = "%w: %s is not a directory"
	sourceEnumerationErrorTemplateConstant  = "%w: %w"
	artifactIndexErrorTemplateConstant      = "failed to index artifacts under %s: %w"
	artifactReadErrorTemplateConstant       = "failed to read artifacts: %w"
	reportWriteErrorTemplateConstant        = "%w: %s: %w"
	invalidOptionsCatalogTemplateConstant   = "invalid artifact kind catalog: %w"
	missingIssueDescriptionTemplateConstant = "missing %s artifact for %s"
	unreadableIssueDescriptionTemplate      = "%s artifact for %s is unreadable"
	duplicateIssueDescriptionTemplate       = "%d artifacts found for %s, expected at most %d"
	inconsistentIssueDescriptionTemplate    = "field %s has %d distinct values across artifacts for %s"

	logMessageRunStartedConstant         = "reconciliation started"
	logMessageRunCompletedConstant       = "reconciliation completed"
	logMessageReportWrittenConstant      = "consistency report written"
	logMessageArtifactUnreadableConstant = "artifact excluded from consistency checks"
	logMessageArtifactStatFailedConstant = "artifact existence check failed"
	logFieldBasePathConstant             = "base_path"
	logFieldOutputPathConstant           = "output_path"
	logFieldSourceCountConstant          = "source_files"
	logFieldArtifactsCheckedConstant     = "artifacts_checked"
	logFieldIssueCountConstant           = "issues"
	logFieldScoreConstant                = "consistency_score"
	logFieldArtifactPathConstant         = "artifact"
	logFieldRunIdentifierConstant        = "run_id"
	defaultParallelismFallbackConstant   = 1
	reportFilePermissionsConstant        = 0o644
	reportDirectoryPermissionsConstant   = 0o755
)

// ErrBasePathUnavailable indicates the base directory could not be read. Runs
// failing with it produce no report.
var ErrBasePathUnavailable = errors.New(basePathUnavailableMessageConstant)

// ErrReportWrite indicates the report was computed but could not be persisted.
var ErrReportWrite = errors.New(reportWriteMessageConstant)

// Service reconciles derived artifacts against discovered sources.
type Service struct {
	discoverer          SourceDiscoverer
	fileSystem          FileSystem
	logger              *zap.Logger
	clock               Clock
	identifierGenerator IdentifierGenerator
}

// NewService constructs a Service using the provided dependencies.
func NewService(discoverer SourceDiscoverer, fileSystem FileSystem, logger *zap.Logger, clock Clock) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		discoverer:          resolveSourceDiscoverer(discoverer),
		fileSystem:          resolveFileSystem(fileSystem),
		logger:              logger,
		clock:               clock,
		identifierGenerator: uuid.NewString,
	}
}

// foundArtifact is an existing file attributed to a source stem by name.
type foundArtifact struct {
	path         string
	absolutePath string
	definition   ArtifactKindDefinition
}

// parsedArtifact is the outcome of reading one found artifact.
type parsedArtifact struct {
	fields     FieldSet
	parseError error
}

// Run reconciles the base path and writes the report to options.OutputPath.
// The computed report is returned even when writing fails; that failure wraps
// ErrReportWrite.
func (service *Service) Run(executionContext context.Context, options Options) (ConsistencyReport, error) {
	report, reconcileError := service.Reconcile(executionContext, options)
	if reconcileError != nil {
		return ConsistencyReport{}, reconcileError
	}

	if writeError := service.WriteReport(options.OutputPath, report); writeError != nil {
		return report, fmt.Errorf(reportWriteErrorTemplateConstant, ErrReportWrite, options.OutputPath, writeError)
	}

	service.logger.Info(logMessageReportWrittenConstant,
		zap.String(logFieldRunIdentifierConstant, report.RunID),
		zap.String(logFieldOutputPathConstant, options.OutputPath),
	)
	return report, nil
}

// Reconcile computes a consistency report without persisting it.
func (service *Service) Reconcile(executionContext context.Context, options Options) (ConsistencyReport, error) {
	catalog := options.Kinds
	if len(catalog) == 0 {
		catalog = DefaultKindCatalog()
	}
	catalog = catalog.normalized()
	if validationError := catalog.Validate(); validationError != nil {
		return ConsistencyReport{}, fmt.Errorf(invalidOptionsCatalogTemplateConstant, validationError)
	}

	basePath, baseError := service.resolveBasePath(options.BasePath)
	if baseError != nil {
		return ConsistencyReport{}, baseError
	}

	artifactsRelativeRoot := filepath.ToSlash(filepath.Clean(options.ArtifactsDirectory))
	artifactsRoot := filepath.Join(basePath, filepath.FromSlash(artifactsRelativeRoot))

	service.logger.Info(logMessageRunStartedConstant, zap.String(logFieldBasePathConstant, basePath))

	sources, sourcesError := service.enumerateSources(basePath, artifactsRoot, options)
	if sourcesError != nil {
		return ConsistencyReport{}, sourcesError
	}

	foundByStem, indexError := service.indexArtifacts(basePath, artifactsRoot, catalog)
	if indexError != nil {
		return ConsistencyReport{}, indexError
	}

	parsedArtifacts, parseError := service.parseArtifacts(executionContext, foundByStem, options.Parallelism)
	if parseError != nil {
		return ConsistencyReport{}, parseError
	}

	report := ConsistencyReport{
		RunID:            service.identifierGenerator(),
		Timestamp:        service.clock.Now().UTC().Format(timestampLayoutConstant),
		BasePath:         basePath,
		TotalSourceFiles: len(sources),
		Issues:           make([]Issue, 0),
		MissingFiles:     make([]string, 0),
		DuplicateFiles:   make([]string, 0),
		UnreadableFiles:  make([]string, 0),
		Inconsistencies:  make(map[string][]FieldInconsistency),
	}

	unreadablePaths := make(map[string]struct{})
	for _, source := range sources {
		expectedArtifacts := DeriveExpectedArtifacts(source, artifactsRoot, artifactsRelativeRoot, catalog)
		report.TotalFilesChecked += len(expectedArtifacts)
		service.checkExistence(expectedArtifacts)

		found := foundByStem[source.Stem]
		service.appendSourceIssues(&report, source, catalog, expectedArtifacts, found, parsedArtifacts, unreadablePaths)
	}

	for unreadablePath := range unreadablePaths {
		report.UnreadableFiles = append(report.UnreadableFiles, unreadablePath)
	}
	sort.Strings(report.UnreadableFiles)

	report.ConsistencyScore = ComputeConsistencyScore(len(report.Issues), report.TotalFilesChecked)

	service.logger.Info(logMessageRunCompletedConstant,
		zap.String(logFieldRunIdentifierConstant, report.RunID),
		zap.Int(logFieldSourceCountConstant, report.TotalSourceFiles),
		zap.Int(logFieldArtifactsCheckedConstant, report.TotalFilesChecked),
		zap.Int(logFieldIssueCountConstant, len(report.Issues)),
		zap.Float64(logFieldScoreConstant, report.ConsistencyScore),
	)

	return report, nil
}

func (service *Service) resolveBasePath(basePath string) (string, error) {
	trimmedBasePath := strings.TrimSpace(basePath)
	if len(trimmedBasePath) == 0 {
		trimmedBasePath = DefaultBasePathConstant
	}

	absoluteBasePath, absoluteError := filepath.Abs(trimmedBasePath)
	if absoluteError != nil {
		return "", fmt.Errorf(basePathResolveErrorTemplateConstant, ErrBasePathUnavailable, trimmedBasePath, absoluteError)
	}

	baseInfo, statError := service.fileSystem.Stat(absoluteBasePath)
	if statError != nil {
		return "", fmt.Errorf(basePathResolveErrorTemplateConstant, ErrBasePathUnavailable, absoluteBasePath, statError)
	}
	if !baseInfo.IsDir() {
		return "", fmt.Errorf(basePathNotDirectoryTemplateConstant, ErrBasePathUnavailable, absoluteBasePath)
	}

	return absoluteBasePath, nil
}

func (service *Service) enumerateSources(basePath string, artifactsRoot string, options Options) ([]SourceRecord, error) {
	criteria := discovery.Criteria{
		Extension:              options.SourceExtension,
		ExcludedDirectoryNames: options.ExcludedDirectories,
		ExcludedPaths:          []string{artifactsRoot},
	}

	discoveredPaths, discoveryError := service.discoverer.DiscoverSources(basePath, criteria)
	if discoveryError != nil {
		return nil, fmt.Errorf(sourceEnumerationErrorTemplateConstant, ErrBasePathUnavailable, discoveryError)
	}

	extension := discovery.NormalizeExtension(options.SourceExtension)
	sources := make([]SourceRecord, 0, len(discoveredPaths))
	for _, discoveredPath := range discoveredPaths {
		relativePath, relativeError := filepath.Rel(basePath, discoveredPath)
		if relativeError != nil {
			relativePath = discoveredPath
		}
		sources = append(sources, SourceRecord{
			SourcePath:   filepath.ToSlash(relativePath),
			AbsolutePath: discoveredPath,
			Stem:         discovery.Stem(filepath.Base(discoveredPath), extension),
		})
	}

	sort.Slice(sources, func(leftIndex int, rightIndex int) bool {
		return sources[leftIndex].SourcePath < sources[rightIndex].SourcePath
	})
	return sources, nil
}

// indexArtifacts walks the artifacts tree once and groups every file named
// after a catalog suffix by the stem it encodes.
func (service *Service) indexArtifacts(basePath string, artifactsRoot string, catalog KindCatalog) (map[string][]foundArtifact, error) {
	foundByStem := make(map[string][]foundArtifact)

	walkError := service.fileSystem.WalkDir(artifactsRoot, func(walkedPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if walkedPath == artifactsRoot && errors.Is(walkError, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkError
		}
		if directoryEntry.IsDir() || !service.isRegularArtifact(walkedPath, directoryEntry) {
			return nil
		}

		definition, stem, matched := catalog.MatchFileName(directoryEntry.Name())
		if !matched {
			return nil
		}

		relativePath, relativeError := filepath.Rel(basePath, walkedPath)
		if relativeError != nil {
			relativePath = walkedPath
		}
		foundByStem[stem] = append(foundByStem[stem], foundArtifact{
			path:         filepath.ToSlash(relativePath),
			absolutePath: walkedPath,
			definition:   definition,
		})
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(artifactIndexErrorTemplateConstant, artifactsRoot, walkError)
	}

	for stem := range foundByStem {
		artifacts := foundByStem[stem]
		sort.Slice(artifacts, func(leftIndex int, rightIndex int) bool {
			return artifacts[leftIndex].path < artifacts[rightIndex].path
		})
	}
	return foundByStem, nil
}

// isRegularArtifact accepts regular files and symlinks whose target is a regular file.
func (service *Service) isRegularArtifact(walkedPath string, directoryEntry fs.DirEntry) bool {
	entryType := directoryEntry.Type()
	if entryType.IsRegular() {
		return true
	}
	if entryType&fs.ModeSymlink == 0 {
		return false
	}
	targetInfo, statError := service.fileSystem.Stat(walkedPath)
	if statError != nil {
		service.logger.Warn(logMessageArtifactStatFailedConstant,
			zap.String(logFieldArtifactPathConstant, walkedPath),
			zap.Error(statError),
		)
		return false
	}
	return targetInfo.Mode().IsRegular()
}

// parseArtifacts reads and parses every found artifact concurrently. Each
// worker owns one result slot; all reads complete before any check runs.
func (service *Service) parseArtifacts(executionContext context.Context, foundByStem map[string][]foundArtifact, parallelism int) (map[string]parsedArtifact, error) {
	artifacts := make([]foundArtifact, 0)
	for _, stemArtifacts := range foundByStem {
		artifacts = append(artifacts, stemArtifacts...)
	}
	sort.Slice(artifacts, func(leftIndex int, rightIndex int) bool {
		return artifacts[leftIndex].path < artifacts[rightIndex].path
	})

	if parallelism <= 0 {
		parallelism = defaultParallelismFallbackConstant
	}

	results := make([]parsedArtifact, len(artifacts))
	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(parallelism)
	for artifactIndex := range artifacts {
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			artifact := artifacts[artifactIndex]
			content, readError := service.fileSystem.ReadFile(artifact.absolutePath)
			if readError != nil {
				results[artifactIndex] = parsedArtifact{parseError: readError}
				return nil
			}
			fields, parseError := ParseArtifact(artifact.definition.Format, content)
			results[artifactIndex] = parsedArtifact{fields: fields, parseError: parseError}
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, fmt.Errorf(artifactReadErrorTemplateConstant, waitError)
	}

	parsedByPath := make(map[string]parsedArtifact, len(artifacts))
	for artifactIndex, artifact := range artifacts {
		result := results[artifactIndex]
		if result.parseError != nil {
			service.logger.Warn(logMessageArtifactUnreadableConstant,
				zap.String(logFieldArtifactPathConstant, artifact.path),
				zap.Error(result.parseError),
			)
		}
		parsedByPath[artifact.path] = result
	}
	return parsedByPath, nil
}

func (service *Service) checkExistence(expectedArtifacts []ExpectedArtifact) {
	for index := range expectedArtifacts {
		artifactInfo, statError := service.fileSystem.Stat(expectedArtifacts[index].absolutePath)
		if statError != nil {
			if !errors.Is(statError, fs.ErrNotExist) {
				service.logger.Warn(logMessageArtifactStatFailedConstant,
					zap.String(logFieldArtifactPathConstant, expectedArtifacts[index].Path),
					zap.Error(statError),
				)
			}
			continue
		}
		if !artifactInfo.Mode().IsRegular() {
			continue
		}
		modificationTime := artifactInfo.ModTime().UTC()
		expectedArtifacts[index].Exists = true
		expectedArtifacts[index].LastModified = &modificationTime
	}
}

func (service *Service) appendSourceIssues(report *ConsistencyReport, source SourceRecord, catalog KindCatalog, expectedArtifacts []ExpectedArtifact, found []foundArtifact, parsedArtifacts map[string]parsedArtifact, unreadablePaths map[string]struct{}) {
	for _, expected := range expectedArtifacts {
		if expected.Exists {
			continue
		}
		report.Issues = append(report.Issues, Issue{
			Type:          IssueTypeMissing,
			Description:   fmt.Sprintf(missingIssueDescriptionTemplateConstant, expected.Kind, source.SourcePath),
			SourceFile:    source.SourcePath,
			AffectedFiles: []string{expected.Path},
		})
		report.MissingFiles = append(report.MissingFiles, expected.Path)
	}

	for _, expected := range expectedArtifacts {
		if !expected.Exists {
			continue
		}
		unreadable := make([]string, 0)
		readable := false
		for _, artifact := range found {
			if artifact.definition.Kind != expected.Kind {
				continue
			}
			if parsedArtifacts[artifact.path].parseError != nil {
				unreadable = append(unreadable, artifact.path)
				continue
			}
			readable = true
		}
		for _, unreadablePath := range unreadable {
			unreadablePaths[unreadablePath] = struct{}{}
		}
		if readable || len(unreadable) == 0 {
			continue
		}
		report.Issues = append(report.Issues, Issue{
			Type:          IssueTypeMissing,
			Description:   fmt.Sprintf(unreadableIssueDescriptionTemplate, expected.Kind, source.SourcePath),
			SourceFile:    source.SourcePath,
			AffectedFiles: unreadable,
		})
	}

	expectedCount := catalog.ExpectedArtifactCount()
	if len(found) > expectedCount {
		affectedFiles := make([]string, 0, len(found))
		for _, artifact := range found {
			affectedFiles = append(affectedFiles, artifact.path)
		}
		report.Issues = append(report.Issues, Issue{
			Type:          IssueTypeDuplicate,
			Description:   fmt.Sprintf(duplicateIssueDescriptionTemplate, len(found), source.SourcePath, expectedCount),
			SourceFile:    source.SourcePath,
			AffectedFiles: affectedFiles,
		})
		report.DuplicateFiles = append(report.DuplicateFiles, source.SourcePath)
	}

	for _, inconsistency := range detectInconsistencies(found, parsedArtifacts) {
		report.Issues = append(report.Issues, Issue{
			Type:          IssueTypeInconsistent,
			Description:   fmt.Sprintf(inconsistentIssueDescriptionTemplate, inconsistency.Field, len(inconsistency.Values), source.SourcePath),
			SourceFile:    source.SourcePath,
			AffectedFiles: affectedFilesForValues(inconsistency.Values),
			Field:         inconsistency.Field,
			Values:        inconsistency.Values,
		})
		report.Inconsistencies[source.SourcePath] = append(report.Inconsistencies[source.SourcePath], inconsistency)
	}
}

// detectInconsistencies groups parsed artifact paths by the value each
// reported per field. Absent fields never conflict.
func detectInconsistencies(found []foundArtifact, parsedArtifacts map[string]parsedArtifact) []FieldInconsistency {
	inconsistencies := make([]FieldInconsistency, 0)
	for _, field := range semanticFieldOrder {
		pathsByValue := make(map[string][]string)
		for _, artifact := range found {
			parsed := parsedArtifacts[artifact.path]
			if parsed.parseError != nil {
				continue
			}
			value, present := parsed.fields[field]
			if !present {
				continue
			}
			pathsByValue[value] = append(pathsByValue[value], artifact.path)
		}
		if len(pathsByValue) < 2 {
			continue
		}
		inconsistencies = append(inconsistencies, FieldInconsistency{Field: field, Values: pathsByValue})
	}
	return inconsistencies
}

func affectedFilesForValues(pathsByValue map[string][]string) []string {
	affectedFiles := make([]string, 0)
	for _, paths := range pathsByValue {
		affectedFiles = append(affectedFiles, paths...)
	}
	sort.Strings(affectedFiles)
	return affectedFiles
}
