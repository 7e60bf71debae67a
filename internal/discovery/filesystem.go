package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

const (
	extensionPrefixConstant            = "."
	walkFailureTemplateConstant        = "failed to enumerate sources under %s: %w"
	emptyExtensionErrorMessageConstant = "source extension must be provided"
)

// ErrEmptyExtension indicates the criteria did not name a source extension.
var ErrEmptyExtension = errors.New(emptyExtensionErrorMessageConstant)

// Criteria selects which files count as sources.
type Criteria struct {
	// Extension matches file names case-insensitively, with or without the leading dot.
	Extension string
	// ExcludedDirectoryNames are skipped wherever they appear in the tree.
	ExcludedDirectoryNames []string
	// ExcludedPaths are skipped when a walked directory resolves to one of them.
	ExcludedPaths []string
}

// FilesystemSourceDiscoverer locates source files on disk.
type FilesystemSourceDiscoverer struct{}

// NewFilesystemSourceDiscoverer constructs a source discoverer backed by filepath.WalkDir.
func NewFilesystemSourceDiscoverer() *FilesystemSourceDiscoverer {
	return &FilesystemSourceDiscoverer{}
}

// DiscoverSources walks root and returns the sorted paths of every regular file
// matching the criteria. Any walk error aborts the enumeration.
func (discoverer *FilesystemSourceDiscoverer) DiscoverSources(root string, criteria Criteria) ([]string, error) {
	extension := NormalizeExtension(criteria.Extension)
	if len(extension) == 0 {
		return nil, ErrEmptyExtension
	}

	excludedNames := make(map[string]struct{}, len(criteria.ExcludedDirectoryNames))
	for _, directoryName := range criteria.ExcludedDirectoryNames {
		trimmedName := strings.TrimSpace(directoryName)
		if len(trimmedName) > 0 {
			excludedNames[trimmedName] = struct{}{}
		}
	}

	excludedPaths := make(map[string]struct{}, len(criteria.ExcludedPaths))
	for _, excludedPath := range criteria.ExcludedPaths {
		if len(strings.TrimSpace(excludedPath)) > 0 {
			excludedPaths[filepath.Clean(excludedPath)] = struct{}{}
		}
	}

	var sources []string
	cleanedRoot := filepath.Clean(root)
	walkError := filepath.WalkDir(cleanedRoot, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}

		if directoryEntry.IsDir() {
			if path == cleanedRoot {
				return nil
			}
			if _, excluded := excludedNames[directoryEntry.Name()]; excluded {
				return fs.SkipDir
			}
			if _, excluded := excludedPaths[filepath.Clean(path)]; excluded {
				return fs.SkipDir
			}
			return nil
		}

		if !directoryEntry.Type().IsRegular() {
			return nil
		}

		if MatchesExtension(directoryEntry.Name(), extension) {
			sources = append(sources, path)
		}
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(walkFailureTemplateConstant, cleanedRoot, walkError)
	}

	sort.Strings(sources)
	return sources, nil
}

// NormalizeExtension trims whitespace and guarantees a leading dot.
func NormalizeExtension(extension string) string {
	trimmedExtension := strings.TrimSpace(extension)
	if len(trimmedExtension) == 0 || trimmedExtension == extensionPrefixConstant {
		return ""
	}
	if !strings.HasPrefix(trimmedExtension, extensionPrefixConstant) {
		trimmedExtension = extensionPrefixConstant + trimmedExtension
	}
	return trimmedExtension
}

// MatchesExtension reports whether fileName ends with the normalized extension and has a non-empty stem.
func MatchesExtension(fileName string, normalizedExtension string) bool {
	if len(fileName) <= len(normalizedExtension) {
		return false
	}
	return strings.EqualFold(fileName[len(fileName)-len(normalizedExtension):], normalizedExtension)
}

// Stem returns the file name without the normalized extension.
func Stem(fileName string, normalizedExtension string) string {
	if !MatchesExtension(fileName, normalizedExtension) {
		return strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	return fileName[:len(fileName)-len(normalizedExtension)]
}
