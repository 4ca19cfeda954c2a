package coordinator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/parasolve/internal/protocol"
)

const readChunkSize = 4096

// Coordinator runs one Init/Fork/Supervise/Drain/Done cycle over a
// fixed worker count. A Coordinator is single-use; build a
// fresh one per phase (the Probe Driver does exactly this, once per
// axis order).
type Coordinator struct {
	cfg    Config
	log    logr.Logger
	out    io.Writer // aggregated human-readable output, normally os.Stdout
	tracer trace.Tracer
	meter  metric.Meter
}

// New returns a Coordinator for one run. log receives lifecycle
// diagnostics (fork failures, status snapshots, warnings); out
// receives the aggregated human-readable stream (printed solution
// text, aggregate-depth rows, worker-completion notices) — kept distinct from log
// the way a UCI front-end keeps raw protocol stdout separate from its
// diagnostic log channel.
func New(cfg Config, log logr.Logger, out io.Writer) *Coordinator {
	if out == nil {
		out = os.Stdout
	}
	return &Coordinator{
		cfg:    cfg,
		log:    log,
		out:    out,
		tracer: otel.Tracer("parasolve/coordinator"),
		meter:  otel.Meter("parasolve/coordinator"),
	}
}

type workerEvent struct {
	number int
	msg    protocol.Message
	text   string // verbatim pass-through line, set only for non-protocol text
	closed bool
}

// Run executes the full state machine and returns once every forked
// worker has been reaped and drained, or setup failed completely.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.run")
	defer span.End()

	liveGauge, _ := c.meter.Int64UpDownCounter("parasolve.workers.live")
	solutionCounter, _ := c.meter.Int64Counter("parasolve.solutions.found")

	startTime := time.Now()
	agg := newAggregator()

	// --- Init ---
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	result := Result{WorkersRequested: c.cfg.WorkerCount}

	// --- Fork ---
	_, forkSpan := c.tracer.Start(ctx, "coordinator.fork")
	cmds := make(map[int]*exec.Cmd, c.cfg.WorkerCount)
	pipes := make(map[int]io.ReadCloser, c.cfg.WorkerCount)
	for i := 1; i <= c.cfg.WorkerCount; i++ {
		cmd, err := c.cfg.Build(i, c.cfg.WorkerCount)
		if err != nil {
			c.log.Error(err, "failed to build worker command, skipping slot", "worker", i)
			continue
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			c.log.Error(err, "failed to create worker pipe, skipping slot", "worker", i)
			continue
		}
		cmd.Stdout = nil // worker mode suppresses stdout entirely
		if err := cmd.Start(); err != nil {
			c.log.Error(err, "failed to start worker, skipping slot", "worker", i)
			continue
		}
		w := newWorkerRecord(i)
		w.Cmd = cmd
		agg.addWorker(w)
		cmds[i] = cmd
		pipes[i] = stderr
		liveGauge.Add(ctx, 1)
	}
	forkSpan.End()

	result.WorkersStarted = len(cmds)
	if result.WorkersStarted == 0 {
		c.log.Info("no workers could be started; caller should fall back to single-process solving")
		return result, nil
	}
	if result.WorkersStarted < result.WorkersRequested {
		c.log.Info("fewer workers started than requested",
			"requested", result.WorkersRequested, "started", result.WorkersStarted)
	}

	// --- Supervise ---
	_, supSpan := c.tracer.Start(ctx, "coordinator.supervise")
	events := make(chan workerEvent, 256)
	var g errgroup.Group
	for n, pipe := range pipes {
		n, pipe := n, pipe
		g.Go(func() error {
			readWorkerPipe(n, pipe, events)
			return nil
		})
	}
	go func() {
		g.Wait()
		close(events)
	}()

	ticker := time.NewTicker(c.cfg.statusInterval())
	defer ticker.Stop()

	capHit := false
	interrupted := false
	deadlineHit := false
	doneCh := ctx.Done()

supervise:
	for {
		select {
		case sig := <-sigCh:
			c.log.Info("received signal, terminating workers", "signal", sig.String())
			interrupted = true
			signalAll(cmds, syscall.SIGTERM)
			// keep draining below; re-raise happens after Drain.
		case <-doneCh:
			doneCh = nil // one-shot: don't keep selecting a permanently-ready channel.
			deadlineHit = true
			if c.cfg.OnDeadline != nil {
				c.cfg.OnDeadline(agg.liveSnapshots())
			}
			c.log.Info("phase deadline reached, terminating workers")
			signalAll(cmds, syscall.SIGTERM)
		case <-ticker.C:
			running := agg.liveCount()
			line := statusSnapshot(time.Since(startTime), running, result.WorkersStarted, c.cfg.statusWorkerListMax(), agg)
			c.log.Info(line)
		case ev, ok := <-events:
			if !ok {
				break supervise
			}
			c.handleEvent(ev, agg, cmds, startTime, result.WorkersStarted, liveGauge, ctx)
			if !capHit && c.cfg.SolutionCap > 0 && agg.solutionCount >= c.cfg.SolutionCap {
				capHit = true
				solutionCounter.Add(ctx, int64(agg.solutionCount))
				c.log.Info("solution cap reached, terminating workers", "cap", c.cfg.SolutionCap)
				signalAll(cmds, syscall.SIGTERM)
			}
		}
	}
	supSpan.End()

	// --- Drain ---
	_, drainSpan := c.tracer.Start(ctx, "coordinator.drain")
	for _, cmd := range cmds {
		cmd.Wait() // reap; pipe already closed/drained by its reader goroutine
	}
	drainSpan.End()

	if !capHit {
		solutionCounter.Add(ctx, int64(agg.solutionCount))
	}

	// --- Done ---
	result.SolutionsFound = agg.solutionCount
	result.CapHit = capHit
	result.Interrupted = interrupted
	result.DeadlineHit = deadlineHit

	if interrupted {
		signal.Stop(sigCh)
		signal.Reset(syscall.SIGINT, syscall.SIGTERM)
		syscall.Kill(os.Getpid(), syscall.SIGTERM)
	}

	return result, nil
}

func (c *Coordinator) handleEvent(ev workerEvent, agg *aggregator, cmds map[int]*exec.Cmd, startTime time.Time, total int, liveGauge metric.Int64UpDownCounter, ctx context.Context) {
	switch {
	case ev.closed:
		agg.finishWorker(ev.number)
		liveGauge.Add(ctx, -1)
		still := make([]int, 0, agg.liveCount())
		for n := range agg.live {
			still = append(still, n)
		}
		fmt.Fprintln(c.out, completionNotice(time.Since(startTime), ev.number, total, still))
	case ev.text != "":
		fmt.Fprintln(c.out, ev.text)
	default:
		switch ev.msg.Kind {
		case protocol.TagText:
			agg.handleText(ev.msg.Text)
			if strings.TrimSpace(ev.msg.Text) != "" {
				fmt.Fprintln(c.out, ev.msg.Text)
			}
		case protocol.TagProgress:
			for _, row := range agg.handleProgress(ev.number, ev.msg) {
				fmt.Fprintf(c.out, "depth %d+%d: %d positions (%.1fs)\n", row.M, row.K, row.Positions, time.Since(startTime).Seconds())
			}
		case protocol.TagCombo:
			agg.handleCombo(ev.number, ev.msg.ComboLabel)
		case protocol.TagSolving, protocol.TagFinished, protocol.TagPartial,
			protocol.TagSolutionStart, protocol.TagSolutionEnd,
			protocol.TagTime, protocol.TagHeartbeat,
			protocol.TagProblemStart, protocol.TagProblemEnd:
			// Lifecycle/envelope tags carry no aggregation state beyond
			// what handleText/handleProgress already track.
		}
	}
}

// readWorkerPipe is the per-worker reader task: it blocks reading
// chunks from the pipe, frames them through a protocol.Scanner, and
// forwards decoded messages and verbatim lines to events in arrival
// order, one goroutine per pipe rather than a multiplexed readiness
// wait over all of them at once.
func readWorkerPipe(number int, pipe io.ReadCloser, events chan<- workerEvent) {
	scanner := protocol.NewScanner()
	buf := make([]byte, readChunkSize)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			msgs, verbatim := scanner.Feed(buf[:n])
			for _, m := range msgs {
				events <- workerEvent{number: number, msg: m}
			}
			for _, v := range verbatim {
				events <- workerEvent{number: number, text: v}
			}
		}
		if err != nil {
			break
		}
	}
	pipe.Close()
	events <- workerEvent{number: number, closed: true}
}

func signalAll(cmds map[int]*exec.Cmd, sig syscall.Signal) {
	for _, cmd := range cmds {
		if cmd.Process != nil {
			cmd.Process.Signal(sig)
		}
	}
}
