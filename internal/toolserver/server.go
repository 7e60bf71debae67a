package toolserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/temirov/auditrecon/internal/reconcile"
	pathutils "github.com/temirov/auditrecon/internal/utils/path"
)

const (
	serverNameConstant               = "audit-reconcile"
	defaultServerVersionConstant     = "dev"
	reconcileToolNameConstant        = "reconcile_audits"
	reconcileToolDescriptionConstant = "Validate migration audit artifacts under a base path. Writes the JSON consistency report and returns the score, issue counts, and issues."
	recheckToolNameConstant          = "recheck_audits"
	recheckToolDescriptionConstant   = "Re-run audit validation and compare it with a previous report. Returns resolved, persisting, and introduced issues with the score delta."
	previousReportRequiredMessage    = "previous_report is required"
	logMessageToolInvokedConstant    = "tool invoked"
	logFieldToolNameConstant         = "tool"
)

var errPreviousReportRequired = errors.New(previousReportRequiredMessage)

// ConfigurationProvider returns the reconcile configuration used to resolve tool arguments.
type ConfigurationProvider func() reconcile.CommandConfiguration

// Server wraps an MCP server whose tools drive a reconcile.Service.
type Server struct {
	MCPServer             *mcp.Server
	service               *reconcile.Service
	configurationProvider ConfigurationProvider
	homeExpander          *pathutils.HomeExpander
	logger                *zap.Logger
}

// NewServer registers the reconciliation tools on a fresh MCP server.
func NewServer(service *reconcile.Service, configurationProvider ConfigurationProvider, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(version) == 0 {
		version = defaultServerVersionConstant
	}
	if configurationProvider == nil {
		configurationProvider = reconcile.DefaultCommandConfiguration
	}

	server := &Server{
		MCPServer:             mcp.NewServer(&mcp.Implementation{Name: serverNameConstant, Version: version}, nil),
		service:               service,
		configurationProvider: configurationProvider,
		homeExpander:          pathutils.NewHomeExpander(),
		logger:                logger,
	}

	mcp.AddTool(server.MCPServer, &mcp.Tool{
		Name:        reconcileToolNameConstant,
		Description: reconcileToolDescriptionConstant,
	}, server.handleReconcile)

	mcp.AddTool(server.MCPServer, &mcp.Tool{
		Name:        recheckToolNameConstant,
		Description: recheckToolDescriptionConstant,
	}, server.handleRecheck)

	return server
}

// Run serves the tools over stdio until the client disconnects or the context is cancelled.
func (server *Server) Run(executionContext context.Context) error {
	return server.MCPServer.Run(executionContext, &mcp.StdioTransport{})
}

type reconcileInput struct {
	BasePath   string `json:"base_path,omitempty" jsonschema:"directory to scan for source files (defaults to configuration)"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"where to write the JSON report (defaults to configuration)"`
}

type reconcileOutput struct {
	RunID             string            `json:"runId"`
	ReportPath        string            `json:"reportPath"`
	ConsistencyScore  float64           `json:"consistencyScore"`
	TotalSourceFiles  int               `json:"totalSourceFiles"`
	TotalFilesChecked int               `json:"totalFilesChecked"`
	MissingCount      int               `json:"missingCount"`
	DuplicateCount    int               `json:"duplicateCount"`
	InconsistentCount int               `json:"inconsistentCount"`
	UnreadableFiles   []string          `json:"unreadableFiles"`
	Issues            []reconcile.Issue `json:"issues"`
}

func (server *Server) handleReconcile(executionContext context.Context, _ *mcp.CallToolRequest, input reconcileInput) (*mcp.CallToolResult, reconcileOutput, error) {
	server.logger.Debug(logMessageToolInvokedConstant, zap.String(logFieldToolNameConstant, reconcileToolNameConstant))

	options, optionsError := reconcile.ResolveOptions(server.configurationProvider(), input.BasePath, input.OutputPath, server.homeExpander)
	if optionsError != nil {
		return nil, reconcileOutput{}, optionsError
	}

	report, runError := server.service.Run(executionContext, options)
	if runError != nil {
		return nil, reconcileOutput{}, runError
	}
	return nil, summarizeReport(report, options.OutputPath), nil
}

type recheckInput struct {
	PreviousReport string `json:"previous_report" jsonschema:"path of the report produced by an earlier run"`
	BasePath       string `json:"base_path,omitempty" jsonschema:"directory to scan for source files (defaults to configuration)"`
	OutputPath     string `json:"output_path,omitempty" jsonschema:"where to write the fresh JSON report (defaults to configuration)"`
}

type recheckOutput struct {
	Report     reconcileOutput   `json:"report"`
	ScoreDelta float64           `json:"scoreDelta"`
	Resolved   []reconcile.Issue `json:"resolved"`
	Persisting []reconcile.Issue `json:"persisting"`
	Introduced []reconcile.Issue `json:"introduced"`
}

func (server *Server) handleRecheck(executionContext context.Context, _ *mcp.CallToolRequest, input recheckInput) (*mcp.CallToolResult, recheckOutput, error) {
	server.logger.Debug(logMessageToolInvokedConstant, zap.String(logFieldToolNameConstant, recheckToolNameConstant))

	previousReportPath := server.homeExpander.Expand(input.PreviousReport)
	if len(previousReportPath) == 0 {
		return nil, recheckOutput{}, errPreviousReportRequired
	}

	options, optionsError := reconcile.ResolveOptions(server.configurationProvider(), input.BasePath, input.OutputPath, server.homeExpander)
	if optionsError != nil {
		return nil, recheckOutput{}, optionsError
	}

	report, comparison, recheckError := server.service.Recheck(executionContext, previousReportPath, options)
	if recheckError != nil {
		return nil, recheckOutput{}, recheckError
	}

	return nil, recheckOutput{
		Report:     summarizeReport(report, options.OutputPath),
		ScoreDelta: comparison.ScoreDelta,
		Resolved:   comparison.Resolved,
		Persisting: comparison.Persisting,
		Introduced: comparison.Introduced,
	}, nil
}

func summarizeReport(report reconcile.ConsistencyReport, reportPath string) reconcileOutput {
	counts := report.IssueCounts()
	return reconcileOutput{
		RunID:             report.RunID,
		ReportPath:        reportPath,
		ConsistencyScore:  report.ConsistencyScore,
		TotalSourceFiles:  report.TotalSourceFiles,
		TotalFilesChecked: report.TotalFilesChecked,
		MissingCount:      counts[reconcile.IssueTypeMissing],
		DuplicateCount:    counts[reconcile.IssueTypeDuplicate],
		InconsistentCount: counts[reconcile.IssueTypeInconsistent],
		UnreadableFiles:   report.UnreadableFiles,
		Issues:            report.Issues,
	}
}
