package pathutils_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/auditrecon/internal/utils/path"
)

const (
	testHomeDirectoryConstant    = "/home/migrator"
	homeExpanderSubtestTemplate  = "%d_%s"
	homeExpanderDefaultFallback  = "reports/audit_consistency_report.json"
	homeExpanderProviderFailure  = "home directory unavailable"
	homeExpanderWorkspaceSegment = "workspace"
)

func TestHomeExpanderExpand(testInstance *testing.T) {
	testCases := []struct {
		name          string
		provider      pathutils.HomeDirectoryProvider
		candidatePath string
		expectedPath  string
	}{
		{
			name:          "bare_tilde",
			provider:      func() (string, error) { return testHomeDirectoryConstant, nil },
			candidatePath: "~",
			expectedPath:  testHomeDirectoryConstant,
		},
		{
			name:          "tilde_prefix",
			provider:      func() (string, error) { return testHomeDirectoryConstant, nil },
			candidatePath: "~/" + homeExpanderWorkspaceSegment,
			expectedPath:  filepath.Join(testHomeDirectoryConstant, homeExpanderWorkspaceSegment),
		},
		{
			name:          "relative_path_untouched",
			provider:      func() (string, error) { return testHomeDirectoryConstant, nil },
			candidatePath: "  ./" + homeExpanderWorkspaceSegment + " ",
			expectedPath:  "./" + homeExpanderWorkspaceSegment,
		},
		{
			name:          "user_form_untouched",
			provider:      func() (string, error) { return testHomeDirectoryConstant, nil },
			candidatePath: "~other/" + homeExpanderWorkspaceSegment,
			expectedPath:  "~other/" + homeExpanderWorkspaceSegment,
		},
		{
			name:          "provider_failure",
			provider:      func() (string, error) { return "", errors.New(homeExpanderProviderFailure) },
			candidatePath: "~/" + homeExpanderWorkspaceSegment,
			expectedPath:  "~/" + homeExpanderWorkspaceSegment,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(homeExpanderSubtestTemplate, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			expander := pathutils.NewHomeExpanderWithProvider(testCase.provider)
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.candidatePath))
		})
	}
}

func TestHomeExpanderExpandOrDefault(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })

	require.Equal(testInstance, homeExpanderDefaultFallback, expander.ExpandOrDefault("   ", homeExpanderDefaultFallback))
	require.Equal(testInstance, testHomeDirectoryConstant, expander.ExpandOrDefault("~", homeExpanderDefaultFallback))
}
