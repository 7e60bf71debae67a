package reconcile

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/auditrecon/internal/utils"
	pathutils "github.com/temirov/auditrecon/internal/utils/path"
)

const (
	reconcileCommandUseConstant              = "reconcile [base-path] [output-path]"
	reconcileCommandShortDescriptionConstant = "Validate derived audit artifacts against source files"
	reconcileCommandLongDescriptionConstant  = "reconcile walks the base path for source files, checks that every expected audit, backlog, and impact graph artifact exists, flags duplicates and cross-artifact field mismatches, and writes a scored JSON report. Issues never change the exit status; only setup and I/O failures do."
	recheckCommandUseConstant                = "recheck <previous-report> [base-path] [output-path]"
	recheckCommandShortDescriptionConstant   = "Re-run reconciliation and compare with a previous report"
	recheckCommandLongDescriptionConstant    = "recheck re-runs reconciliation, writes a fresh report, and lists which issues from the previous report were resolved, which persist, and which were introduced."
	watchFlagNameConstant                    = "watch"
	watchFlagDescriptionConstant             = "Keep running and reconcile again whenever files under the base path change"
	debounceFlagNameConstant                 = "debounce"
	debounceFlagDescriptionConstant          = "Quiet period before a watched change triggers a run (defaults to configuration)"
	parallelismFlagNameConstant              = "parallelism"
	parallelismFlagDescriptionConstant       = "Maximum concurrent artifact reads (defaults to configuration)"
	maximumReconcileArgumentsConstant        = 2
	minimumRecheckArgumentsConstant          = 1
	maximumRecheckArgumentsConstant          = 3
	reconcileFailureTemplateConstant         = "reconcile failed: %w"
	recheckFailureTemplateConstant           = "recheck failed: %w"
	watchFailureTemplateConstant             = "watch failed: %w"
	logMessageWatchRunFailedConstant         = "watched run failed"
	logMessageSummaryFailedConstant          = "failed to render summary"
	logMessageInvocationConstant             = "reconcile invoked"
	logFieldConfigurationFileConstant        = "config_file"
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current reconcile configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the reconcile and recheck cobra commands.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Discoverer            SourceDiscoverer
	FileSystem            FileSystem
	Clock                 Clock
	HomeExpander          *pathutils.HomeExpander
}

// Build constructs the reconcile command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           reconcileCommandUseConstant,
		Short:         reconcileCommandShortDescriptionConstant,
		Long:          reconcileCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(maximumReconcileArgumentsConstant),
		RunE:          builder.runReconcile,
	}

	command.Flags().Bool(watchFlagNameConstant, false, watchFlagDescriptionConstant)
	command.Flags().Duration(debounceFlagNameConstant, 0, debounceFlagDescriptionConstant)
	command.Flags().Int(parallelismFlagNameConstant, 0, parallelismFlagDescriptionConstant)

	return command, nil
}

// BuildRecheck constructs the recheck command.
func (builder *CommandBuilder) BuildRecheck() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           recheckCommandUseConstant,
		Short:         recheckCommandShortDescriptionConstant,
		Long:          recheckCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.RangeArgs(minimumRecheckArgumentsConstant, maximumRecheckArgumentsConstant),
		RunE:          builder.runRecheck,
	}

	command.Flags().Int(parallelismFlagNameConstant, 0, parallelismFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) runReconcile(command *cobra.Command, arguments []string) error {
	basePathArgument, outputPathArgument := positionalArgument(arguments, 0), positionalArgument(arguments, 1)
	options, optionsError := builder.resolveOptions(command, basePathArgument, outputPathArgument)
	if optionsError != nil {
		return fmt.Errorf(reconcileFailureTemplateConstant, optionsError)
	}

	logger := builder.resolveLogger()
	if metadata, available := utils.NewCommandContextAccessor().InvocationMetadata(command.Context()); available {
		logger.Debug(logMessageInvocationConstant,
			zap.String(logFieldConfigurationFileConstant, metadata.ConfigurationFilePath),
			zap.String(logFieldBasePathConstant, options.BasePath),
			zap.String(logFieldOutputPathConstant, options.OutputPath),
		)
	}
	service := builder.resolveService(logger)

	watchEnabled, _ := command.Flags().GetBool(watchFlagNameConstant)
	if watchEnabled {
		debounce, _ := command.Flags().GetDuration(debounceFlagNameConstant)
		if debounce <= 0 {
			debounce = builder.resolveConfiguration().sanitize().WatchDebounce
		}
		return builder.runWatch(command, service, logger, options, debounce)
	}

	report, runError := service.Run(command.Context(), options)
	if len(report.RunID) > 0 {
		if summaryError := RenderSummary(command.OutOrStdout(), report, options.OutputPath); summaryError != nil {
			return summaryError
		}
	}
	if runError != nil {
		return fmt.Errorf(reconcileFailureTemplateConstant, runError)
	}
	return nil
}

func (builder *CommandBuilder) runWatch(command *cobra.Command, service *Service, logger *zap.Logger, options Options, debounce time.Duration) error {
	handler := func(report ConsistencyReport, runError error) {
		if len(report.RunID) > 0 {
			if summaryError := RenderSummary(command.OutOrStdout(), report, options.OutputPath); summaryError != nil {
				logger.Warn(logMessageSummaryFailedConstant, zap.Error(summaryError))
			}
		}
		if runError != nil {
			logger.Error(logMessageWatchRunFailedConstant, zap.Error(runError))
		}
	}

	if watchError := service.Watch(command.Context(), options, debounce, handler); watchError != nil {
		return fmt.Errorf(watchFailureTemplateConstant, watchError)
	}
	return nil
}

func (builder *CommandBuilder) runRecheck(command *cobra.Command, arguments []string) error {
	previousReportPath := builder.resolveHomeExpander().Expand(positionalArgument(arguments, 0))
	options, optionsError := builder.resolveOptions(command, positionalArgument(arguments, 1), positionalArgument(arguments, 2))
	if optionsError != nil {
		return fmt.Errorf(recheckFailureTemplateConstant, optionsError)
	}

	service := builder.resolveService(builder.resolveLogger())
	report, comparison, recheckError := service.Recheck(command.Context(), previousReportPath, options)
	if len(report.RunID) > 0 {
		if summaryError := RenderSummary(command.OutOrStdout(), report, options.OutputPath); summaryError != nil {
			return summaryError
		}
		if summaryError := RenderRecheckSummary(command.OutOrStdout(), comparison, previousReportPath); summaryError != nil {
			return summaryError
		}
	}
	if recheckError != nil {
		return fmt.Errorf(recheckFailureTemplateConstant, recheckError)
	}
	return nil
}

func (builder *CommandBuilder) resolveOptions(command *cobra.Command, basePathArgument string, outputPathArgument string) (Options, error) {
	configuration := builder.resolveConfiguration()
	if parallelism, flagError := command.Flags().GetInt(parallelismFlagNameConstant); flagError == nil && parallelism > 0 {
		configuration.Parallelism = parallelism
	}
	return ResolveOptions(configuration, basePathArgument, outputPathArgument, builder.resolveHomeExpander())
}

func (builder *CommandBuilder) resolveService(logger *zap.Logger) *Service {
	return NewService(builder.Discoverer, builder.FileSystem, logger, builder.Clock)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveHomeExpander() *pathutils.HomeExpander {
	if builder.HomeExpander != nil {
		return builder.HomeExpander
	}
	return pathutils.NewHomeExpander()
}

func positionalArgument(arguments []string, index int) string {
	if index < len(arguments) {
		return arguments[index]
	}
	return ""
}
