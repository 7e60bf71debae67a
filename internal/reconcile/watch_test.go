package reconcile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/temirov/auditrecon/internal/reconcile"
)

const (
	watchTestDebounce = 50 * time.Millisecond
	watchTestTimeout  = 10 * time.Second
)

func TestServiceWatchReconcilesAfterChanges(testInstance *testing.T) {
	defer goleak.VerifyNone(testInstance)

	basePath := testInstance.TempDir()
	writeFixture(testInstance, basePath, "foo.php", fixtureSourceContent)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(basePath, "audits"), fixtureDirectoryPermissions))

	options := newTestOptions(basePath)
	watchContext, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan reconcile.ConsistencyReport, 1)
	watchResult := make(chan error, 1)
	go func() {
		watchResult <- newTestService().Watch(watchContext, options, watchTestDebounce, func(report reconcile.ConsistencyReport, runError error) {
			if runError != nil {
				return
			}
			select {
			case reports <- report:
			case <-watchContext.Done():
			}
		})
	}()

	initial := awaitReport(testInstance, reports, func(report reconcile.ConsistencyReport) bool { return true })
	require.Len(testInstance, initial.Issues, 3)

	writeConsistentArtifacts(testInstance, basePath, "foo")

	reconciled := awaitReport(testInstance, reports, func(report reconcile.ConsistencyReport) bool {
		return len(report.Issues) == 0
	})
	require.Equal(testInstance, 10.0, reconciled.ConsistencyScore)

	cancel()
	select {
	case watchError := <-watchResult:
		require.NoError(testInstance, watchError)
	case <-time.After(watchTestTimeout):
		testInstance.Fatal("watch did not stop after cancellation")
	}
}

func TestServiceWatchRejectsUnavailableBasePath(testInstance *testing.T) {
	defer goleak.VerifyNone(testInstance)

	options := newTestOptions(filepath.Join(testInstance.TempDir(), "absent"))
	watchError := newTestService().Watch(context.Background(), options, watchTestDebounce, nil)
	require.ErrorIs(testInstance, watchError, reconcile.ErrBasePathUnavailable)
}

func awaitReport(testInstance *testing.T, reports <-chan reconcile.ConsistencyReport, accept func(reconcile.ConsistencyReport) bool) reconcile.ConsistencyReport {
	testInstance.Helper()
	deadline := time.After(watchTestTimeout)
	for {
		select {
		case report := <-reports:
			if accept(report) {
				return report
			}
		case <-deadline:
			testInstance.Fatal("timed out waiting for a matching report")
			return reconcile.ConsistencyReport{}
		}
	}
}
