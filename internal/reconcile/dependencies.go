package reconcile

import (
	"io/fs"

	"github.com/temirov/auditrecon/internal/discovery"
	"github.com/temirov/auditrecon/internal/filesystem"
)

// SourceDiscoverer enumerates source files under a base path.
type SourceDiscoverer interface {
	DiscoverSources(root string, criteria discovery.Criteria) ([]string, error)
}

// FileSystem provides the filesystem operations required by reconciliation runs.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WalkDir(root string, walkFunction fs.WalkDirFunc) error
	MkdirAll(path string, permissions fs.FileMode) error
	WriteFileAtomic(path string, data []byte, permissions fs.FileMode) error
}

// IdentifierGenerator produces unique run identifiers.
type IdentifierGenerator func() string

func resolveSourceDiscoverer(discoverer SourceDiscoverer) SourceDiscoverer {
	if discoverer != nil {
		return discoverer
	}
	return discovery.NewFilesystemSourceDiscoverer()
}

func resolveFileSystem(fileSystem FileSystem) FileSystem {
	if fileSystem != nil {
		return fileSystem
	}
	return filesystem.OSFileSystem{}
}
