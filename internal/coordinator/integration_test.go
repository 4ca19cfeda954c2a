package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

// shellWorkerScript emits a minimal but complete protocol transcript
// for worker n of total: a solving notice, one numbered solution line,
// a progress report that only advances once every worker has reported
// the same depth, and a finished notice.
func shellWorkerScript(n, total int) string {
	return fmt.Sprintf(`
echo '@@SOLVING' >&2
echo '@@SOLUTION_START' >&2
echo '@@TEXT:1.Ka%d Kb%d' >&2
echo '@@SOLUTION_END' >&2
echo '@@PROGRESS:1+0:%d' >&2
echo '@@FINISHED' >&2
`, n, n, n*10)
}

func TestCoordinatorRunEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no /bin/sh available in this environment")
	}

	const workers = 3
	var out bytes.Buffer

	cfg := Config{
		WorkerCount:    workers,
		StatusInterval: time.Hour, // don't fire during the test
		Build: func(n, total int) (*exec.Cmd, error) {
			return exec.Command("sh", "-c", shellWorkerScript(n, total)), nil
		},
	}

	coord := New(cfg, logr.Discard(), &out)
	result, err := coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.WorkersStarted != workers {
		t.Fatalf("WorkersStarted = %d, want %d", result.WorkersStarted, workers)
	}
	if result.SolutionsFound != workers {
		t.Fatalf("SolutionsFound = %d, want %d", result.SolutionsFound, workers)
	}
	if result.CapHit || result.Interrupted {
		t.Fatalf("unexpected CapHit=%v Interrupted=%v", result.CapHit, result.Interrupted)
	}
}

func TestCoordinatorSkipsFailedBuildSlot(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no /bin/sh available in this environment")
	}

	var out bytes.Buffer
	cfg := Config{
		WorkerCount:    2,
		StatusInterval: time.Hour,
		Build: func(n, total int) (*exec.Cmd, error) {
			if n == 1 {
				return nil, fmt.Errorf("simulated build failure")
			}
			return exec.Command("sh", "-c", shellWorkerScript(n, total)), nil
		},
	}

	coord := New(cfg, logr.Discard(), &out)
	result, err := coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.WorkersRequested != 2 {
		t.Fatalf("WorkersRequested = %d, want 2", result.WorkersRequested)
	}
	if result.WorkersStarted != 1 {
		t.Fatalf("WorkersStarted = %d, want 1 (slot 1 should have been skipped)", result.WorkersStarted)
	}
}
