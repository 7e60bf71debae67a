package reconcile

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const (
	suffixSeparatorConstant                = "."
	narrativeReportSuffixConstant          = "audit.md"
	structuredBacklogSuffixConstant        = "backlog.json"
	impactGraphSuffixConstant              = "impact_graph.json"
	catalogEmptyMessageConstant            = "artifact kind catalog must define at least one kind"
	catalogKindNameRequiredMessageConstant = "artifact kind name must be provided"
	catalogDuplicateKindTemplateConstant   = "artifact kind %s is defined more than once"
	catalogSuffixRequiredTemplateConstant  = "artifact kind %s must define a suffix"
	catalogDuplicateSuffixTemplateConstant = "artifact suffix %s is used by more than one kind"
	catalogUnknownFormatTemplateConstant   = "artifact kind %s uses unsupported format %q"
)

var errEmptyCatalog = errors.New(catalogEmptyMessageConstant)

// ArtifactKindDefinition binds an artifact kind to its file suffix and parser format.
type ArtifactKindDefinition struct {
	Kind   ArtifactKind   `mapstructure:"name" yaml:"name" json:"name"`
	Suffix string         `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
	Format ArtifactFormat `mapstructure:"format" yaml:"format" json:"format"`
}

// KindCatalog is the ordered set of artifact kinds expected for every source.
// Its length is the duplicate-detection threshold.
type KindCatalog []ArtifactKindDefinition

// DefaultKindCatalog returns the three canonical artifact kinds.
func DefaultKindCatalog() KindCatalog {
	return KindCatalog{
		{Kind: ArtifactKindNarrativeReport, Suffix: narrativeReportSuffixConstant, Format: ArtifactFormatMarkdown},
		{Kind: ArtifactKindStructuredBacklog, Suffix: structuredBacklogSuffixConstant, Format: ArtifactFormatBacklog},
		{Kind: ArtifactKindImpactGraph, Suffix: impactGraphSuffixConstant, Format: ArtifactFormatImpactGraph},
	}
}

// Validate reports configuration mistakes that would make path derivation ambiguous.
func (catalog KindCatalog) Validate() error {
	if len(catalog) == 0 {
		return errEmptyCatalog
	}

	seenKinds := make(map[ArtifactKind]struct{}, len(catalog))
	seenSuffixes := make(map[string]struct{}, len(catalog))
	for _, definition := range catalog {
		if len(strings.TrimSpace(string(definition.Kind))) == 0 {
			return errors.New(catalogKindNameRequiredMessageConstant)
		}
		if _, duplicated := seenKinds[definition.Kind]; duplicated {
			return fmt.Errorf(catalogDuplicateKindTemplateConstant, definition.Kind)
		}
		seenKinds[definition.Kind] = struct{}{}

		normalizedSuffix := normalizeSuffix(definition.Suffix)
		if len(normalizedSuffix) == 0 {
			return fmt.Errorf(catalogSuffixRequiredTemplateConstant, definition.Kind)
		}
		if _, duplicated := seenSuffixes[normalizedSuffix]; duplicated {
			return fmt.Errorf(catalogDuplicateSuffixTemplateConstant, normalizedSuffix)
		}
		seenSuffixes[normalizedSuffix] = struct{}{}

		if _, supported := artifactParsers[definition.Format]; !supported {
			return fmt.Errorf(catalogUnknownFormatTemplateConstant, definition.Kind, definition.Format)
		}
	}

	return nil
}

// ExpectedArtifactCount is the number of artifacts every source should have.
func (catalog KindCatalog) ExpectedArtifactCount() int {
	return len(catalog)
}

// normalized returns a copy with trimmed names and suffixes.
func (catalog KindCatalog) normalized() KindCatalog {
	normalizedCatalog := make(KindCatalog, 0, len(catalog))
	for _, definition := range catalog {
		normalizedCatalog = append(normalizedCatalog, ArtifactKindDefinition{
			Kind:   ArtifactKind(strings.TrimSpace(string(definition.Kind))),
			Suffix: normalizeSuffix(definition.Suffix),
			Format: ArtifactFormat(strings.TrimSpace(string(definition.Format))),
		})
	}
	return normalizedCatalog
}

// MatchFileName attributes an artifact file name to a kind and source stem.
// The longest matching suffix wins so "impact_graph.json" is never read as a
// shorter "json" suffix.
func (catalog KindCatalog) MatchFileName(fileName string) (ArtifactKindDefinition, string, bool) {
	var matchedDefinition ArtifactKindDefinition
	matchedStem := ""
	matched := false

	for _, definition := range catalog {
		dottedSuffix := suffixSeparatorConstant + definition.Suffix
		if !strings.HasSuffix(fileName, dottedSuffix) {
			continue
		}
		stem := strings.TrimSuffix(fileName, dottedSuffix)
		if len(stem) == 0 {
			continue
		}
		if matched && len(definition.Suffix) <= len(matchedDefinition.Suffix) {
			continue
		}
		matchedDefinition = definition
		matchedStem = stem
		matched = true
	}

	return matchedDefinition, matchedStem, matched
}

// ArtifactFileName is the canonical artifact file name for a stem and kind.
func ArtifactFileName(stem string, definition ArtifactKindDefinition) string {
	return stem + suffixSeparatorConstant + definition.Suffix
}

// DeriveExpectedArtifacts returns one expected artifact per catalog kind for the
// source. It is a pure function of its inputs; existence is filled in later.
func DeriveExpectedArtifacts(source SourceRecord, artifactsRoot string, artifactsRelativeRoot string, catalog KindCatalog) []ExpectedArtifact {
	expectedArtifacts := make([]ExpectedArtifact, 0, len(catalog))
	for _, definition := range catalog {
		fileName := ArtifactFileName(source.Stem, definition)
		expectedArtifacts = append(expectedArtifacts, ExpectedArtifact{
			SourcePath:   source.SourcePath,
			Path:         path.Join(artifactsRelativeRoot, fileName),
			Kind:         definition.Kind,
			absolutePath: filepath.Join(artifactsRoot, fileName),
		})
	}
	return expectedArtifacts
}

func normalizeSuffix(suffix string) string {
	return strings.TrimPrefix(strings.TrimSpace(suffix), suffixSeparatorConstant)
}
