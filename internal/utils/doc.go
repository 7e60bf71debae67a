// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the Viper-backed ConfigurationLoader, the zap LoggerFactory, and
// the CommandContextAccessor used to hand invocation metadata from the root
// command to its subcommands.
package utils
