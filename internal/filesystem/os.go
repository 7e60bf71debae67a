package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

const (
	temporaryFileTemplateConstant = "%s.tmp.%d"
	directoryPermissionsConstant  = 0o755
	windowsOperatingSystemName    = "windows"
)

// OSFileSystem implements filesystem access using the operating system primitives.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile reads file contents.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WalkDir walks the file tree rooted at root.
func (OSFileSystem) WalkDir(root string, walkFunction fs.WalkDirFunc) error {
	return filepath.WalkDir(root, walkFunction)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// WriteFileAtomic writes data to a sibling temporary file, syncs it, and renames
// it over path so readers never observe a partially written file.
func (OSFileSystem) WriteFileAtomic(path string, data []byte, permissions fs.FileMode) error {
	directory := filepath.Dir(path)
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}

	temporaryPath := fmt.Sprintf(temporaryFileTemplateConstant, path, os.Getpid())
	temporaryFile, openError := os.OpenFile(temporaryPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, permissions)
	if openError != nil {
		return openError
	}

	if _, writeError := temporaryFile.Write(data); writeError != nil {
		_ = temporaryFile.Close()
		_ = os.Remove(temporaryPath)
		return writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		_ = os.Remove(temporaryPath)
		return syncError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		_ = os.Remove(temporaryPath)
		return closeError
	}

	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		_ = os.Remove(temporaryPath)
		return renameError
	}

	return syncDirectory(directory)
}

func syncDirectory(directory string) error {
	if runtime.GOOS == windowsOperatingSystemName {
		return nil
	}
	directoryHandle, openError := os.Open(directory)
	if openError != nil {
		return nil
	}
	defer directoryHandle.Close()
	// Some filesystems refuse fsync on directories; the rename already happened.
	_ = directoryHandle.Sync()
	return nil
}
