package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/metrics"
)

// sampleJob is a unit of work: one object sampled over the full time grid.
// Samples within an object are produced sequentially; objects run in parallel.
type sampleJob struct {
	obj elements.Object
}

// sampleResult is the output of sampling one object.
type sampleResult struct {
	trajectory Trajectory
	err        error
	catalogID  int
}

// WorkerPool manages a fixed number of goroutines for parallel trajectory
// sampling.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// SampleTrajectories propagates every object over the grid of n samples spaced
// interval apart starting at start, returning an id-indexed trajectory map.
// Objects whose element sets fail to initialize or propagate are skipped with
// a warning; one bad object never aborts the batch.
func (wp *WorkerPool) SampleTrajectories(ctx context.Context, objs []elements.Object, start time.Time, interval time.Duration, n int) map[int]Trajectory {
	if len(objs) == 0 || n <= 0 {
		return map[int]Trajectory{}
	}

	began := time.Now()

	jobs := make(chan sampleJob, wp.workers*2)
	results := make(chan sampleResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := sampleSingle(job.obj, start, interval, n)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, obj := range objs {
			select {
			case jobs <- sampleJob{obj: obj}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	trajectories := make(map[int]Trajectory, len(objs))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("trajectory sampling failed",
				"catalog_id", result.catalogID,
				"error", result.err,
			)
			continue
		}
		successCount++
		trajectories[result.catalogID] = result.trajectory
	}

	metrics.RecordPropagation(time.Since(began), successCount, errorCount)

	return trajectories
}

// sampleSingle produces the full sample set for one object. Any propagation
// failure discards the whole trajectory: a partial grid would skew the
// pairwise minimum-distance search.
func sampleSingle(obj elements.Object, start time.Time, interval time.Duration, n int) sampleResult {
	adapter, err := NewAdapter(obj)
	if err != nil {
		return sampleResult{catalogID: obj.CatalogID, err: err}
	}

	points := make([]TrajectoryPoint, 0, n)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * interval)
		state, err := adapter.PropagateECI(t)
		if err != nil {
			return sampleResult{catalogID: obj.CatalogID, err: err}
		}
		points = append(points, TrajectoryPoint{
			XKm: state.X,
			YKm: state.Y,
			ZKm: state.Z,
			T:   t,
		})
	}

	return sampleResult{
		catalogID: obj.CatalogID,
		trajectory: Trajectory{
			CatalogID:  obj.CatalogID,
			AltitudeKm: obj.OrbitalAltitudeKm,
			Points:     points,
		},
	}
}
