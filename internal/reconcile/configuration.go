package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/auditrecon/internal/discovery"
	pathutils "github.com/temirov/auditrecon/internal/utils/path"
)

const (
	// DefaultBasePathConstant is the workspace scanned when no base path is configured.
	DefaultBasePathConstant = "."
	// DefaultOutputPathConstant is where the report is written when no output path is configured.
	DefaultOutputPathConstant = "reports/audit_consistency_report.json"

	defaultSourceExtensionConstant    = ".php"
	defaultArtifactsDirectoryConstant = "audits"
	defaultParallelismConstant        = 8
	defaultWatchDebounceConstant      = 300 * time.Millisecond

	configurationKeySeparatorConstant           = "."
	basePathConfigurationKeyConstant            = "base_path"
	outputPathConfigurationKeyConstant          = "output_path"
	sourceExtensionConfigurationKeyConstant     = "source_extension"
	artifactsDirectoryConfigurationKeyConstant  = "artifacts_directory"
	excludedDirectoriesConfigurationKeyConstant = "excluded_directories"
	parallelismConfigurationKeyConstant         = "parallelism"
	watchDebounceConfigurationKeyConstant       = "watch_debounce"
	kindsConfigurationKeyConstant               = "kinds"
	kindNameConfigurationKeyConstant            = "name"
	kindSuffixConfigurationKeyConstant          = "suffix"
	kindFormatConfigurationKeyConstant          = "format"

	artifactsDirectoryEscapesTemplateConstant = "artifacts directory %q must stay inside the base path"
	invalidCatalogTemplateConstant            = "invalid artifact kind catalog: %w"
)

var defaultExcludedDirectories = []string{".git", "node_modules"}

// CommandConfiguration captures persistent settings for the reconcile, recheck, and mcp commands.
type CommandConfiguration struct {
	BasePath            string                   `mapstructure:"base_path"`
	OutputPath          string                   `mapstructure:"output_path"`
	SourceExtension     string                   `mapstructure:"source_extension"`
	ArtifactsDirectory  string                   `mapstructure:"artifacts_directory"`
	ExcludedDirectories []string                 `mapstructure:"excluded_directories"`
	Parallelism         int                      `mapstructure:"parallelism"`
	WatchDebounce       time.Duration            `mapstructure:"watch_debounce"`
	Kinds               []ArtifactKindDefinition `mapstructure:"kinds"`
}

// DefaultCommandConfiguration returns baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		BasePath:            DefaultBasePathConstant,
		OutputPath:          DefaultOutputPathConstant,
		SourceExtension:     defaultSourceExtensionConstant,
		ArtifactsDirectory:  defaultArtifactsDirectoryConstant,
		ExcludedDirectories: append([]string(nil), defaultExcludedDirectories...),
		Parallelism:         defaultParallelismConstant,
		WatchDebounce:       defaultWatchDebounceConstant,
		Kinds:               DefaultKindCatalog(),
	}
}

// DefaultConfigurationValues returns viper defaults rooted at keyPrefix.
func DefaultConfigurationValues(keyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()

	kindValues := make([]map[string]any, 0, len(defaults.Kinds))
	for _, definition := range defaults.Kinds {
		kindValues = append(kindValues, map[string]any{
			kindNameConfigurationKeyConstant:   string(definition.Kind),
			kindSuffixConfigurationKeyConstant: definition.Suffix,
			kindFormatConfigurationKeyConstant: string(definition.Format),
		})
	}

	qualify := func(key string) string {
		if len(keyPrefix) == 0 {
			return key
		}
		return keyPrefix + configurationKeySeparatorConstant + key
	}

	return map[string]any{
		qualify(basePathConfigurationKeyConstant):            defaults.BasePath,
		qualify(outputPathConfigurationKeyConstant):          defaults.OutputPath,
		qualify(sourceExtensionConfigurationKeyConstant):     defaults.SourceExtension,
		qualify(artifactsDirectoryConfigurationKeyConstant):  defaults.ArtifactsDirectory,
		qualify(excludedDirectoriesConfigurationKeyConstant): defaults.ExcludedDirectories,
		qualify(parallelismConfigurationKeyConstant):         defaults.Parallelism,
		qualify(watchDebounceConfigurationKeyConstant):       defaults.WatchDebounce.String(),
		qualify(kindsConfigurationKeyConstant):               kindValues,
	}
}

// sanitize trims whitespace and applies defaults to unset configuration values.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.BasePath = strings.TrimSpace(configuration.BasePath)
	sanitized.OutputPath = strings.TrimSpace(configuration.OutputPath)
	if len(sanitized.OutputPath) == 0 {
		sanitized.OutputPath = defaults.OutputPath
	}

	sanitized.SourceExtension = discovery.NormalizeExtension(configuration.SourceExtension)
	if len(sanitized.SourceExtension) == 0 {
		sanitized.SourceExtension = defaults.SourceExtension
	}

	sanitized.ArtifactsDirectory = strings.TrimSpace(configuration.ArtifactsDirectory)
	if len(sanitized.ArtifactsDirectory) == 0 {
		sanitized.ArtifactsDirectory = defaults.ArtifactsDirectory
	}

	if configuration.ExcludedDirectories == nil {
		sanitized.ExcludedDirectories = defaults.ExcludedDirectories
	} else {
		sanitized.ExcludedDirectories = sanitizeDirectoryNames(configuration.ExcludedDirectories)
	}

	if sanitized.Parallelism <= 0 {
		sanitized.Parallelism = defaults.Parallelism
	}
	if sanitized.WatchDebounce <= 0 {
		sanitized.WatchDebounce = defaults.WatchDebounce
	}

	if len(configuration.Kinds) == 0 {
		sanitized.Kinds = defaults.Kinds
	} else {
		sanitized.Kinds = KindCatalog(configuration.Kinds).normalized()
	}

	return sanitized
}

// ResolveOptions merges configuration with positional overrides into run options.
// Blank overrides fall back to the configured values.
func ResolveOptions(configuration CommandConfiguration, basePathOverride string, outputPathOverride string, homeExpander *pathutils.HomeExpander) (Options, error) {
	sanitized := configuration.sanitize()
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}

	basePath := homeExpander.ExpandOrDefault(basePathOverride, sanitized.BasePath)
	if len(basePath) == 0 {
		basePath = DefaultBasePathConstant
	}
	outputPath := homeExpander.ExpandOrDefault(outputPathOverride, sanitized.OutputPath)

	artifactsDirectory := filepath.Clean(sanitized.ArtifactsDirectory)
	if filepath.IsAbs(artifactsDirectory) || artifactsDirectory == ".." || strings.HasPrefix(artifactsDirectory, ".."+string(filepath.Separator)) {
		return Options{}, fmt.Errorf(artifactsDirectoryEscapesTemplateConstant, sanitized.ArtifactsDirectory)
	}

	catalog := KindCatalog(sanitized.Kinds)
	if validationError := catalog.Validate(); validationError != nil {
		return Options{}, fmt.Errorf(invalidCatalogTemplateConstant, validationError)
	}

	return Options{
		BasePath:            filepath.Clean(basePath),
		OutputPath:          filepath.Clean(outputPath),
		SourceExtension:     sanitized.SourceExtension,
		ArtifactsDirectory:  artifactsDirectory,
		ExcludedDirectories: sanitized.ExcludedDirectories,
		Kinds:               catalog,
		Parallelism:         sanitized.Parallelism,
	}, nil
}

func sanitizeDirectoryNames(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for index := range raw {
		trimmed := strings.TrimSpace(raw[index])
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
