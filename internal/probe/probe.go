// Package probe sequences the Worker Coordinator across the six fixed
// axis orders with a per-order wall-clock budget, harvesting
// still-running combos into a ranked heavy-combo registry when a
// phase's deadline expires.
package probe

import (
	"context"
	"io"
	"time"

	"github.com/go-logr/logr"

	"github.com/hailam/parasolve/internal/coordinator"
	"github.com/hailam/parasolve/internal/partition"
)

// AxisOrders is the fixed cycle the probe driver walks, in the
// solver's original order.
var AxisOrders = partition.AllAxisOrders

// PhaseCoordinator builds a fresh Coordinator for one axis order. The
// Probe Driver calls this once per phase so each phase gets its own
// single-use Coordinator, per coordinator.Coordinator's contract.
type PhaseCoordinator func(order partition.AxisOrder) *coordinator.Coordinator

// Driver runs the six-phase probe sequence.
type Driver struct {
	workerCount  int
	phaseTimeout time.Duration
	newPhase     PhaseCoordinator
	log          logr.Logger
	out          io.Writer
	registry     *Registry
}

// New returns a Driver that will run one phase per axis order in
// AxisOrders, each bounded by phaseTimeout.
func New(workerCount int, phaseTimeout time.Duration, newPhase PhaseCoordinator, log logr.Logger, out io.Writer) *Driver {
	return &Driver{
		workerCount:  workerCount,
		phaseTimeout: phaseTimeout,
		newPhase:     newPhase,
		log:          log,
		out:          out,
		registry:     NewRegistry(),
	}
}

// PhaseResult pairs an axis order with the coordinator result it
// produced, for the driver's own diagnostics.
type PhaseResult struct {
	Order  partition.AxisOrder
	Result coordinator.Result
}

// Run walks AxisOrders in sequence, stopping early if ctx is
// cancelled between phases (an interrupt during a phase is instead
// surfaced as that phase's own Result.Interrupted: "stopping
// early on interrupt"). It returns every phase's result and leaves the
// accumulated heavy-combo registry in d.Registry().
func (d *Driver) Run(ctx context.Context) ([]PhaseResult, error) {
	var results []PhaseResult
	for _, order := range AxisOrders {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		phaseCtx, cancel := context.WithTimeout(ctx, d.phaseTimeout)
		coord := d.newPhase(order)
		res, err := coord.Run(phaseCtx)
		cancel()
		if err != nil {
			return results, err
		}
		results = append(results, PhaseResult{Order: order, Result: res})
		d.log.Info("probe phase complete", "order", order.String(),
			"workersStarted", res.WorkersStarted, "deadlineHit", res.DeadlineHit)

		if res.Interrupted {
			break
		}
	}
	return results, nil
}

// Registry returns the heavy-combo registry accumulated across every
// phase run so far.
func (d *Driver) Registry() *Registry { return d.registry }

// OnDeadline adapts a phase's live-worker snapshot into Registry.Record
// calls; wire this as the phase Coordinator's Config.OnDeadline. A
// worker that has not reported any progress yet is recorded at depth 0.
func (d *Driver) OnDeadline(live []coordinator.LiveWorker) {
	for _, w := range live {
		if w.CurrentComboLabel == "" {
			continue
		}
		depth := uint32(0)
		if w.LastDepth > 0 {
			depth = uint32(w.LastDepth)
		}
		d.registry.Record(w.CurrentComboLabel, depth)
	}
}
