package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/auditrecon/cmd/cli"
	"github.com/temirov/auditrecon/internal/reconcile"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testSourceContentConstant         = "<?php\n"
	testFilePermissionsConstant       = 0o644
	testDirectoryPermissionsConstant  = 0o755
	testSubtestNameTemplateConstant   = "%d_%s"
	testSummaryMarkerConstant         = "Consistency score"
	testOutputPathEnvironmentConstant = "AUDITRECON_TOOLS_RECONCILE_OUTPUT_PATH"
	testConfigurationContentTemplate  = "common:\n  log_level: error\ntools:\n  reconcile:\n    source_extension: %s\n"
	testConfiguredSourceExtension     = ".inc"
	testReconcileCommandNameConstant  = "reconcile"
	testLogLevelFlagConstant          = "--log-level"
	testConfigFlagConstant            = "--config"
	testQuietLogLevelConstant         = "error"
	testInvalidLogLevelConstant       = "verbose"
)

func isolateUserConfiguration(testInstance *testing.T) {
	testInstance.Helper()
	homeDirectory := testInstance.TempDir()
	testInstance.Setenv("HOME", homeDirectory)
	testInstance.Setenv("XDG_CONFIG_HOME", filepath.Join(homeDirectory, "config"))
}

func writeTestFile(testInstance *testing.T, path string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(path), testDirectoryPermissionsConstant))
	require.NoError(testInstance, os.WriteFile(path, []byte(content), testFilePermissionsConstant))
}

func decodeEmbeddedReconcileConfiguration(testInstance testing.TB) reconcile.CommandConfiguration {
	testInstance.Helper()

	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(configurationData)))

	var configuration reconcile.CommandConfiguration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     &configuration,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	require.NoError(testInstance, decoderError)
	require.NoError(testInstance, decoder.Decode(viperInstance.Get("tools.reconcile")))
	return configuration
}

func TestApplicationEmbeddedDefaultsMatchCommandDefaults(testInstance *testing.T) {
	embedded := decodeEmbeddedReconcileConfiguration(testInstance)
	require.Empty(testInstance, cmp.Diff(reconcile.DefaultCommandConfiguration(), embedded))
}

func TestApplicationRegistersCommands(testInstance *testing.T) {
	application, applicationError := cli.NewApplication()
	require.NoError(testInstance, applicationError)

	commandNames := make([]string, 0)
	for _, command := range application.RootCommand().Commands() {
		commandNames = append(commandNames, command.Name())
	}
	require.Subset(testInstance, commandNames, []string{"reconcile", "recheck", "mcp"})
}

func TestApplicationExecutesReconcile(testInstance *testing.T) {
	testCases := []struct {
		name              string
		sourceFileName    string
		prepare           func(testInstance *testing.T, workspace string) []string
		expectedReportAt  func(workspace string) string
		expectedLogLevel  string
		expectedExtension string
	}{
		{
			name:           "positional_arguments",
			sourceFileName: "foo.php",
			prepare: func(testInstance *testing.T, workspace string) []string {
				return []string{testReconcileCommandNameConstant, workspace, filepath.Join(workspace, "out", "report.json"), testLogLevelFlagConstant, testQuietLogLevelConstant}
			},
			expectedReportAt: func(workspace string) string {
				return filepath.Join(workspace, "out", "report.json")
			},
			expectedLogLevel:  testQuietLogLevelConstant,
			expectedExtension: ".php",
		},
		{
			name:           "environment_output_path",
			sourceFileName: "foo.php",
			prepare: func(testInstance *testing.T, workspace string) []string {
				testInstance.Setenv(testOutputPathEnvironmentConstant, filepath.Join(workspace, "env", "report.json"))
				return []string{testReconcileCommandNameConstant, workspace, testLogLevelFlagConstant, testQuietLogLevelConstant}
			},
			expectedReportAt: func(workspace string) string {
				return filepath.Join(workspace, "env", "report.json")
			},
			expectedLogLevel:  testQuietLogLevelConstant,
			expectedExtension: ".php",
		},
		{
			name:           "configuration_file",
			sourceFileName: "foo.inc",
			prepare: func(testInstance *testing.T, workspace string) []string {
				configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
				writeTestFile(testInstance, configurationPath, fmt.Sprintf(testConfigurationContentTemplate, testConfiguredSourceExtension))
				return []string{testReconcileCommandNameConstant, workspace, filepath.Join(workspace, "report.json"), testConfigFlagConstant, configurationPath}
			},
			expectedReportAt: func(workspace string) string {
				return filepath.Join(workspace, "report.json")
			},
			expectedLogLevel:  testQuietLogLevelConstant,
			expectedExtension: testConfiguredSourceExtension,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			isolateUserConfiguration(testInstance)
			workspace := testInstance.TempDir()
			writeTestFile(testInstance, filepath.Join(workspace, testCase.sourceFileName), testSourceContentConstant)

			application, applicationError := cli.NewApplication()
			require.NoError(testInstance, applicationError)

			outputBuffer := &bytes.Buffer{}
			rootCommand := application.RootCommand()
			rootCommand.SetOut(outputBuffer)
			rootCommand.SetErr(&bytes.Buffer{})
			rootCommand.SetArgs(testCase.prepare(testInstance, workspace))

			require.NoError(testInstance, application.Execute(context.Background()))
			require.Contains(testInstance, outputBuffer.String(), testSummaryMarkerConstant)

			configuration := application.Configuration()
			require.Equal(testInstance, testCase.expectedLogLevel, configuration.Common.LogLevel)
			require.Equal(testInstance, testCase.expectedExtension, configuration.Tools.Reconcile.SourceExtension)

			reportContent, readError := os.ReadFile(testCase.expectedReportAt(workspace))
			require.NoError(testInstance, readError)

			var report reconcile.ConsistencyReport
			require.NoError(testInstance, json.Unmarshal(reportContent, &report))
			require.Equal(testInstance, 1, report.TotalSourceFiles)
			require.Equal(testInstance, 3, report.TotalFilesChecked)
			require.Len(testInstance, report.Issues, 3)
		})
	}
}

func TestApplicationRejectsInvalidLogLevel(testInstance *testing.T) {
	isolateUserConfiguration(testInstance)

	application, applicationError := cli.NewApplication()
	require.NoError(testInstance, applicationError)

	rootCommand := application.RootCommand()
	rootCommand.SetOut(&bytes.Buffer{})
	rootCommand.SetErr(&bytes.Buffer{})
	rootCommand.SetArgs([]string{testReconcileCommandNameConstant, testInstance.TempDir(), testLogLevelFlagConstant, testInvalidLogLevelConstant})

	require.Error(testInstance, application.Execute(context.Background()))
}
