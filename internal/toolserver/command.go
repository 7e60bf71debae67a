package toolserver

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/auditrecon/internal/reconcile"
)

const (
	mcpCommandUseConstant              = "mcp"
	mcpCommandShortDescriptionConstant = "Serve reconciliation tools over the Model Context Protocol"
	mcpCommandLongDescriptionConstant  = "mcp serves the reconcile_audits and recheck_audits tools over stdin/stdout so editors and agents can trigger validation runs."
	unexpectedArgumentsMessageConstant = "mcp does not accept positional arguments"
	logMessageServerStartingConstant   = "starting tool server over stdio"
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the mcp cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Version               string
}

// Build constructs the mcp command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           mcpCommandUseConstant,
		Short:         mcpCommandShortDescriptionConstant,
		Long:          mcpCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          builder.run,
	}
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessageConstant)
	}

	logger := builder.resolveLogger()
	service := reconcile.NewService(nil, nil, logger, nil)
	server := NewServer(service, builder.ConfigurationProvider, logger, builder.Version)

	logger.Info(logMessageServerStartingConstant)
	return server.Run(command.Context())
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
