package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	watcherCreateErrorTemplateConstant   = "failed to create watcher: %w"
	watcherRegisterErrorTemplateConstant = "failed to watch %s: %w"
	logMessageWatchStartedConstant       = "watching for artifact changes"
	logMessageWatchStoppedConstant       = "watch stopped"
	logMessageWatchErrorConstant         = "watcher reported an error"
	logMessageWatchTriggeredConstant     = "change detected, reconciling"
	logFieldDebounceConstant             = "debounce"
	logFieldEventPathConstant            = "path"
	minimumWatchDebounceConstant         = 10 * time.Millisecond
)

// ReportHandler receives the outcome of every run performed while watching.
type ReportHandler func(report ConsistencyReport, runError error)

// Watch runs reconciliation once, then again after every burst of filesystem
// changes under the base path, until the context is cancelled. Events under
// the output path are ignored so report writes never retrigger a run.
func (service *Service) Watch(executionContext context.Context, options Options, debounce time.Duration, handler ReportHandler) error {
	if handler == nil {
		handler = func(ConsistencyReport, error) {}
	}
	if debounce < minimumWatchDebounceConstant {
		debounce = minimumWatchDebounceConstant
	}

	basePath, baseError := service.resolveBasePath(options.BasePath)
	if baseError != nil {
		return baseError
	}
	outputPath, outputError := filepath.Abs(options.OutputPath)
	if outputError != nil {
		outputPath = options.OutputPath
	}

	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return fmt.Errorf(watcherCreateErrorTemplateConstant, watcherError)
	}
	defer watcher.Close()

	excludedNames := make(map[string]struct{}, len(options.ExcludedDirectories))
	for _, directoryName := range options.ExcludedDirectories {
		excludedNames[directoryName] = struct{}{}
	}
	ignored := func(candidatePath string) bool {
		return strings.HasPrefix(candidatePath, outputPath)
	}

	if registerError := addWatchRecursive(watcher, basePath, excludedNames, ignored); registerError != nil {
		return registerError
	}

	service.logger.Info(logMessageWatchStartedConstant,
		zap.String(logFieldBasePathConstant, basePath),
		zap.Duration(logFieldDebounceConstant, debounce),
	)
	handler(service.Run(executionContext, options))

	debounceTimer := time.NewTimer(debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-executionContext.Done():
			service.logger.Info(logMessageWatchStoppedConstant)
			return nil
		case event, open := <-watcher.Events:
			if !open {
				return nil
			}
			if ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories need their own watch; errors surface on the next walk.
				_ = addWatchRecursive(watcher, event.Name, excludedNames, ignored)
			}
			service.logger.Debug(logMessageWatchTriggeredConstant, zap.String(logFieldEventPathConstant, event.Name))
			debounceTimer.Reset(debounce)
		case watchError, open := <-watcher.Errors:
			if !open {
				return nil
			}
			service.logger.Warn(logMessageWatchErrorConstant, zap.Error(watchError))
		case <-debounceTimer.C:
			handler(service.Run(executionContext, options))
		}
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string, excludedNames map[string]struct{}, ignored func(string) bool) error {
	return filepath.WalkDir(root, func(walkedPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if walkedPath == root {
				if errors.Is(walkError, fs.ErrNotExist) {
					return nil
				}
				return fmt.Errorf(watcherRegisterErrorTemplateConstant, walkedPath, walkError)
			}
			return nil
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		if walkedPath != root {
			if _, excluded := excludedNames[directoryEntry.Name()]; excluded {
				return fs.SkipDir
			}
		}
		if ignored(walkedPath) {
			return fs.SkipDir
		}
		if addError := watcher.Add(walkedPath); addError != nil {
			return fmt.Errorf(watcherRegisterErrorTemplateConstant, walkedPath, addError)
		}
		return nil
	})
}
