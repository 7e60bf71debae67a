package reconcile

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

const (
	reportIndentConstant                 = "  "
	reportTrailingNewlineConstant        = '\n'
	reportEncodeErrorTemplateConstant    = "failed to encode report: %w"
	reportDirectoryErrorTemplateConstant = "failed to create report directory %s: %w"
	reportReadErrorTemplateConstant      = "failed to read report %s: %w"
	reportDecodeErrorTemplateConstant    = "failed to decode report %s: %w"
)

// EncodeReport renders the report as two-space indented JSON with a trailing newline.
func EncodeReport(report ConsistencyReport) ([]byte, error) {
	encoded, encodeError := json.MarshalIndent(report, "", reportIndentConstant)
	if encodeError != nil {
		return nil, fmt.Errorf(reportEncodeErrorTemplateConstant, encodeError)
	}
	return append(encoded, reportTrailingNewlineConstant), nil
}

// WriteReport persists the report at outputPath, creating parent directories.
func (service *Service) WriteReport(outputPath string, report ConsistencyReport) error {
	encoded, encodeError := EncodeReport(report)
	if encodeError != nil {
		return encodeError
	}

	outputDirectory := filepath.Dir(outputPath)
	if mkdirError := service.fileSystem.MkdirAll(outputDirectory, reportDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(reportDirectoryErrorTemplateConstant, outputDirectory, mkdirError)
	}

	return service.fileSystem.WriteFileAtomic(outputPath, encoded, reportFilePermissionsConstant)
}

// LoadReport reads a previously written report.
func (service *Service) LoadReport(reportPath string) (ConsistencyReport, error) {
	content, readError := service.fileSystem.ReadFile(reportPath)
	if readError != nil {
		return ConsistencyReport{}, fmt.Errorf(reportReadErrorTemplateConstant, reportPath, readError)
	}

	var report ConsistencyReport
	if decodeError := json.Unmarshal(content, &report); decodeError != nil {
		return ConsistencyReport{}, fmt.Errorf(reportDecodeErrorTemplateConstant, reportPath, decodeError)
	}
	return report, nil
}
