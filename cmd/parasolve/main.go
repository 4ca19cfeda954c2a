// Command parasolve is the entrypoint for the parallel work-distribution
// core: it either runs as a worker (solving one partition slice and
// reporting over the structured protocol), as a coordinator (forking
// and supervising N workers), or as a probe driver (cycling axis
// orders to discover heavy combos).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/hailam/parasolve/internal/coordinator"
	"github.com/hailam/parasolve/internal/movefilter"
	"github.com/hailam/parasolve/internal/partition"
	"github.com/hailam/parasolve/internal/probe"
	"github.com/hailam/parasolve/internal/protocol"
	"github.com/hailam/parasolve/internal/queue"
)

func main() {
	var (
		workerMode        = flag.Bool("worker", false, "enable worker mode (structured output on stderr)")
		parallelN         = flag.Int("parallel", 0, "fork N cooperating worker processes")
		partitionOrder    = flag.String("partition-order", "kpc", "axis order, a permutation of k,p,c")
		partitionFrac     = flag.String("partition", "", "N/M: this worker covers combo%M==N-1")
		partitionRange    = flag.String("partition-range", "", "S/T/X: start,stride,max")
		firstMovePart     = flag.String("first-move-partition", "", "N/M: static first-move filter")
		firstMoveQueueN   = flag.Int("first-move-queue", 0, "enable first-move queue mode with N participants")
		singleCombo       = flag.String("single-combo", "", "C: restrict to exactly one combo")
		probeFlag         = flag.String("probe", "", "enable probe mode with T seconds per phase; -probe= or an invalid T uses 60")
		queueFile         = flag.String("first-move-queue-file", "", "path to the shared first-move-queue file")
		solutionCap       = flag.Int("max-solutions", 0, "terminate all workers once this many solutions are seen (0 = unlimited)")
		_                 = flag.String("rebalance", "", "reserved, not implemented (see DESIGN.md)")
	)
	flag.Parse()

	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))

	if *workerMode {
		runWorker(*partitionOrder, *partitionFrac, *partitionRange, *singleCombo, *firstMovePart, *firstMoveQueueN, *queueFile)
		return
	}

	if flagWasPassed("probe") {
		timeout := 60 * time.Second
		if *probeFlag != "" {
			if secs, err := strconv.Atoi(*probeFlag); err == nil && secs >= 1 && secs <= 3600 {
				timeout = time.Duration(secs) * time.Second
			}
		}
		runProbe(logger, *parallelN, timeout)
		return
	}

	if *parallelN > 0 {
		runCoordinator(logger, *parallelN, *solutionCap, mustAxisOrder(*partitionOrder), *firstMoveQueueN)
		return
	}

	fmt.Fprintln(os.Stderr, "parasolve: nothing to do (pass -worker, -parallel N, or -probe)")
	os.Exit(1)
}

// flagWasPassed reports whether -name appeared on the command line,
// distinguishing "-probe=" (use the default timeout) from its absence.
// -probe is a string flag, so a bare "-probe" takes the next argument
// as its value.
func flagWasPassed(name string) bool {
	seen := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			seen = true
		}
	})
	return seen
}

func mustAxisOrder(tag string) partition.AxisOrder {
	order, err := partition.ParseAxisOrder(tag)
	if err != nil {
		return partition.DefaultAxisOrder // invalid flag: leave state unchanged.
	}
	return order
}

// parseFraction parses an 1-indexed "N/M" flag into (index-1, total).
// A malformed field is treated as absent.
func parseFraction(s string) (index, total int, ok bool) {
	n, m, found := strings.Cut(s, "/")
	if !found {
		return 0, 0, false
	}
	ni, err1 := strconv.Atoi(n)
	mi, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || mi <= 0 || ni < 1 || ni > mi {
		return 0, 0, false
	}
	return ni - 1, mi, true
}

func parseRange(s string) (start, stride, max int, ok bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if start, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, false
	}
	if stride, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, false
	}
	if max, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, false
	}
	if start < 0 || stride <= 0 || max <= 0 || max > partition.MaxCombos || start >= max {
		return 0, 0, 0, false
	}
	return start, stride, max, true
}

// buildWorkerSpec resolves the -partition*/-single-combo flags into a
// partition.Spec, defaulting to the zero (accept-all) spec when none
// are set or all are malformed.
func buildWorkerSpec(partitionFrac, partitionRange, singleCombo string) partition.Spec {
	if singleCombo != "" {
		if c, err := strconv.Atoi(singleCombo); err == nil {
			if spec, err := partition.NewSingleCombo(c); err == nil {
				return spec
			}
		}
	}
	if partitionRange != "" {
		if start, stride, max, ok := parseRange(partitionRange); ok {
			if spec, err := partition.NewRange(start, stride, max); err == nil {
				return spec
			}
		}
	}
	if partitionFrac != "" {
		if index, total, ok := parseFraction(partitionFrac); ok {
			if spec, err := partition.NewSingle(index, total); err == nil {
				return spec
			}
		}
	}
	var zero partition.Spec
	return zero
}

func buildFirstMoveFilter(firstMovePart string, firstMoveQueueN int, queueFilePath string) *movefilter.Filter {
	if firstMoveQueueN > 0 && queueFilePath != "" {
		q, err := queue.Open(queueFilePath)
		if err == nil {
			return movefilter.NewQueue(q)
		}
	}
	if firstMovePart != "" {
		if index, total, ok := parseFraction(firstMovePart); ok {
			return movefilter.NewStatic(index, total)
		}
	}
	return movefilter.NewOff()
}

// runWorker configures this process's partition/filter state from its
// flags and runs the opaque external solve, reporting over the
// structured protocol on stderr. The actual search engine is out of
// scope for this core; solveStub stands in for it so the wiring
// here is exercised end-to-end.
func runWorker(axisOrderTag, partitionFrac, partitionRange, singleCombo, firstMovePart string, firstMoveQueueN int, queueFilePath string) {
	order := mustAxisOrder(axisOrderTag)
	spec := buildWorkerSpec(partitionFrac, partitionRange, singleCombo)
	filter := buildFirstMoveFilter(firstMovePart, firstMoveQueueN, queueFilePath)

	w := protocol.NewWriter(os.Stderr)
	w.Solving()
	solveStub(order, spec, filter, w)
	w.Finished()
}

// runCoordinator spawns N worker subprocesses re-invoking this same
// binary with -worker and a Range partition covering 1/N of the combo
// space, the default Range(i-1, K, MaxCombos) assignment.
func runCoordinator(logger logr.Logger, n, solutionCap int, order partition.AxisOrder, firstMoveQueueN int) {
	queueFilePath := ""
	if firstMoveQueueN > 0 {
		f, err := os.CreateTemp("", "parasolve-queue-*.bin")
		if err != nil {
			logger.Error(err, "failed to create first-move-queue file; continuing without queue mode")
		} else {
			path := f.Name()
			f.Close()
			os.Remove(path)
			q, err := queue.Create(path, uint32(firstMoveQueueN))
			if err != nil {
				logger.Error(err, "failed to initialize first-move-queue; continuing without queue mode")
			} else {
				defer q.Close()
				defer os.Remove(path)
				queueFilePath = path
			}
		}
	}

	cfg := coordinator.Config{
		WorkerCount: n,
		SolutionCap: solutionCap,
		AxisOrder:   order,
		Build:       workerCommandBuilder(order, queueFilePath),
	}
	coord := coordinator.New(cfg, logger, os.Stdout)
	result, err := coord.Run(context.Background())
	if err != nil {
		logger.Error(err, "coordinator run failed")
		os.Exit(1)
	}
	if result.WorkersStarted == 0 {
		logger.Info("no workers started; falling back to single-process would happen here")
	}
}

func runProbe(logger logr.Logger, n int, timeout time.Duration) {
	newPhase := func(order partition.AxisOrder) *coordinator.Coordinator {
		return nil // replaced below once the driver exists, to close over its OnDeadline hook.
	}
	var driver *probe.Driver
	newPhase = func(order partition.AxisOrder) *coordinator.Coordinator {
		cfg := coordinator.Config{
			WorkerCount: n,
			AxisOrder:   order,
			OnDeadline:  driver.OnDeadline,
			Build:       workerCommandBuilder(order, ""),
		}
		return coordinator.New(cfg, logger, os.Stdout)
	}
	driver = probe.New(n, timeout, newPhase, logger, os.Stdout)

	results, err := driver.Run(context.Background())
	if err != nil {
		logger.Error(err, "probe run failed")
		os.Exit(1)
	}
	for _, r := range results {
		logger.Info("phase done", "order", r.Order.String(), "workers", r.Result.WorkersStarted)
	}
	fmt.Fprintln(os.Stdout, driver.Registry().Summary())
}

// workerCommandBuilder re-invokes the current executable with -worker
// and a Range slice covering worker i of total, matching the
// default partition assignment.
func workerCommandBuilder(order partition.AxisOrder, queueFilePath string) coordinator.CommandBuilder {
	self, err := os.Executable()
	return func(i, total int) (*exec.Cmd, error) {
		if err != nil {
			return nil, fmt.Errorf("parasolve: cannot locate own executable: %w", err)
		}
		args := []string{
			"-worker",
			"-partition-order", order.String(),
			"-partition-range", fmt.Sprintf("%d/%d/%d", i-1, total, partition.MaxCombos),
		}
		if queueFilePath != "" {
			args = append(args, "-first-move-queue", strconv.Itoa(total), "-first-move-queue-file", queueFilePath)
		}
		return exec.Command(self, args...), nil
	}
}
