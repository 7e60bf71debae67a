package toolserver_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/temirov/auditrecon/internal/reconcile"
	"github.com/temirov/auditrecon/internal/toolserver"
)

const (
	testSourceContent   = "<?php\n"
	testFilePermissions = 0o644
)

type toolResult struct {
	RunID             string            `json:"runId"`
	ReportPath        string            `json:"reportPath"`
	ConsistencyScore  float64           `json:"consistencyScore"`
	TotalFilesChecked int               `json:"totalFilesChecked"`
	MissingCount      int               `json:"missingCount"`
	Issues            []reconcile.Issue `json:"issues"`
}

type recheckToolResult struct {
	Report     toolResult        `json:"report"`
	ScoreDelta float64           `json:"scoreDelta"`
	Resolved   []reconcile.Issue `json:"resolved"`
	Introduced []reconcile.Issue `json:"introduced"`
}

func connectClient(testInstance *testing.T) *mcp.ClientSession {
	testInstance.Helper()
	executionContext := context.Background()

	server := toolserver.NewServer(reconcile.NewService(nil, nil, nil, nil), nil, nil, "test")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, serverError := server.MCPServer.Connect(executionContext, serverTransport, nil)
	require.NoError(testInstance, serverError)
	testInstance.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	clientSession, clientError := client.Connect(executionContext, clientTransport, nil)
	require.NoError(testInstance, clientError)
	testInstance.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func callTool(testInstance *testing.T, session *mcp.ClientSession, name string, arguments map[string]any, target any) *mcp.CallToolResult {
	testInstance.Helper()
	result, callError := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: arguments})
	require.NoError(testInstance, callError)
	if result.IsError || target == nil {
		return result
	}
	for _, content := range result.Content {
		if textContent, isText := content.(*mcp.TextContent); isText {
			require.NoError(testInstance, json.Unmarshal([]byte(textContent.Text), target))
			return result
		}
	}
	testInstance.Fatal("tool result carried no text content")
	return nil
}

func writeFile(testInstance *testing.T, path string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(testInstance, os.WriteFile(path, []byte(content), testFilePermissions))
}

func TestServerListsTools(testInstance *testing.T) {
	session := connectClient(testInstance)

	tools, listError := session.ListTools(context.Background(), nil)
	require.NoError(testInstance, listError)

	toolNames := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		toolNames = append(toolNames, tool.Name)
	}
	require.ElementsMatch(testInstance, []string{"reconcile_audits", "recheck_audits"}, toolNames)
}

func TestServerReconcileAndRecheckTools(testInstance *testing.T) {
	session := connectClient(testInstance)

	basePath := testInstance.TempDir()
	reportPath := filepath.Join(basePath, "reports", "report.json")
	writeFile(testInstance, filepath.Join(basePath, "foo.php"), testSourceContent)

	var reconciled toolResult
	callTool(testInstance, session, "reconcile_audits", map[string]any{
		"base_path":   basePath,
		"output_path": reportPath,
	}, &reconciled)

	require.NotEmpty(testInstance, reconciled.RunID)
	require.Equal(testInstance, reportPath, reconciled.ReportPath)
	require.Equal(testInstance, 3, reconciled.TotalFilesChecked)
	require.Equal(testInstance, 3, reconciled.MissingCount)
	require.Zero(testInstance, reconciled.ConsistencyScore)
	_, statError := os.Stat(reportPath)
	require.NoError(testInstance, statError)

	writeFile(testInstance, filepath.Join(basePath, "audits", "foo.audit.md"), "Route: /foo\n")

	var rechecked recheckToolResult
	callTool(testInstance, session, "recheck_audits", map[string]any{
		"previous_report": reportPath,
		"base_path":       basePath,
		"output_path":     reportPath,
	}, &rechecked)

	require.Len(testInstance, rechecked.Resolved, 1)
	require.Empty(testInstance, rechecked.Introduced)
	require.Equal(testInstance, 3.3, rechecked.ScoreDelta)
	require.Equal(testInstance, 2, rechecked.Report.MissingCount)
}

func TestServerReportsToolErrors(testInstance *testing.T) {
	session := connectClient(testInstance)

	missingBase := callTool(testInstance, session, "reconcile_audits", map[string]any{
		"base_path":   filepath.Join(testInstance.TempDir(), "absent"),
		"output_path": filepath.Join(testInstance.TempDir(), "report.json"),
	}, nil)
	require.True(testInstance, missingBase.IsError)

	missingPrevious := callTool(testInstance, session, "recheck_audits", map[string]any{
		"previous_report": filepath.Join(testInstance.TempDir(), "absent.json"),
		"base_path":       testInstance.TempDir(),
	}, nil)
	require.True(testInstance, missingPrevious.IsError)
}
