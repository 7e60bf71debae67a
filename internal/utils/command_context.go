package utils

import "context"

const invocationMetadataContextKeyConstant = commandContextKey("invocationMetadata")

type commandContextKey string

// InvocationMetadata describes how the running command was configured.
type InvocationMetadata struct {
	ConfigurationFilePath string
	LogLevel              LogLevel
	LogFormat             LogFormat
}

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithInvocationMetadata attaches invocation metadata to the provided context.
func (accessor CommandContextAccessor) WithInvocationMetadata(parentContext context.Context, metadata InvocationMetadata) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, invocationMetadataContextKeyConstant, metadata)
}

// InvocationMetadata extracts invocation metadata from the provided context.
func (accessor CommandContextAccessor) InvocationMetadata(executionContext context.Context) (InvocationMetadata, bool) {
	if executionContext == nil {
		return InvocationMetadata{}, false
	}
	metadata, metadataAvailable := executionContext.Value(invocationMetadataContextKeyConstant).(InvocationMetadata)
	return metadata, metadataAvailable
}
