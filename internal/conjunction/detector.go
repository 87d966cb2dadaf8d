// Package conjunction implements the close-approach detection pipeline: it
// samples trajectories for the tracked population, screens ordered pairs per
// altitude band for minimum separation, attaches collision probabilities, and
// persists the surviving records keyed by canonical pair id.
package conjunction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/astra/astrashield/internal/collision"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/metrics"
	"github.com/astra/astrashield/internal/propagation"
)

// Detection defaults.
const (
	DefaultMaxObjects          = 300
	DefaultForecastHours       = 12
	DefaultSampleIntervalMin   = 5
	DefaultAltitudePrefilterKm = 200.0
	DefaultStorageThresholdKm  = 10.0
)

// meanOrbitalSpeedKmS feeds the approximate relative velocity recorded at
// TCA, 2 * 7.5 km/s. Not derived from state vectors; see DESIGN.md.
const meanOrbitalSpeedKmS = 7.5

// ErrRunInProgress is returned when a detection run is triggered while
// another is still executing. Concurrent triggers coalesce rather than queue.
var ErrRunInProgress = errors.New("conjunction: detection run already in progress")

// Store is the persistence surface the detector needs.
type Store interface {
	ListObjects(ctx context.Context, limit int) ([]elements.Object, error)
	FindObject(ctx context.Context, catalogID int) (elements.Object, error)
	BulkUpsertConjunctions(ctx context.Context, recs []Conjunction) error
	UpsertConjunction(ctx context.Context, rec Conjunction) error
}

// Config tunes a detection engine. Zero values select the defaults.
type Config struct {
	MaxObjects          int
	ForecastHours       int
	SampleIntervalMin   int
	AltitudePrefilterKm float64
	StorageThresholdKm  float64

	// Workers bounds parallel trajectory sampling; defaults to GOMAXPROCS.
	Workers int

	// Pc tunes the collision-probability computation for surviving pairs.
	Pc collision.Options
}

func (c Config) withDefaults() Config {
	if c.MaxObjects <= 0 {
		c.MaxObjects = DefaultMaxObjects
	}
	if c.ForecastHours <= 0 {
		c.ForecastHours = DefaultForecastHours
	}
	if c.SampleIntervalMin <= 0 {
		c.SampleIntervalMin = DefaultSampleIntervalMin
	}
	if c.AltitudePrefilterKm <= 0 {
		c.AltitudePrefilterKm = DefaultAltitudePrefilterKm
	}
	if c.StorageThresholdKm <= 0 {
		c.StorageThresholdKm = DefaultStorageThresholdKm
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Engine runs conjunction detection over the stored population. At most one
// run executes at a time per engine; concurrent triggers fail fast with
// ErrRunInProgress.
type Engine struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	pool   *propagation.WorkerPool

	mu sync.Mutex // single-flight token for detection runs
}

// NewEngine creates a detection engine over the given store.
func NewEngine(store Store, cfg Config, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:  store,
		cfg:    cfg,
		logger: logger,
		pool:   propagation.NewWorkerPool(cfg.Workers, logger),
	}
}

// Run executes one detection pass anchored at now and returns the persisted
// conjunctions. Individual propagation and Pc failures are absorbed; store
// failures and cancellation surface as errors. Cancellation is observed at
// band boundaries, leaving already-upserted records in place.
func (e *Engine) Run(ctx context.Context, now time.Time) ([]Conjunction, error) {
	if !e.mu.TryLock() {
		metrics.RecordDetectionRun(metrics.OutcomeCoalesced, 0)
		return nil, ErrRunInProgress
	}
	defer e.mu.Unlock()

	began := time.Now()
	records, err := e.run(ctx, now)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeCanceled
		}
		metrics.RecordDetectionRun(outcome, time.Since(began))
		return records, err
	}
	metrics.RecordDetectionRun(metrics.OutcomeOK, time.Since(began))
	return records, nil
}

func (e *Engine) run(ctx context.Context, now time.Time) ([]Conjunction, error) {
	objs, err := e.store.ListObjects(ctx, e.cfg.MaxObjects)
	if err != nil {
		return nil, fmt.Errorf("conjunction: load objects: %w", err)
	}
	metrics.SetTrackedObjects(len(objs))
	if len(objs) < 2 {
		e.logger.Info("detection run skipped", "objects", len(objs))
		return nil, nil
	}

	samples := e.cfg.ForecastHours * 60 / e.cfg.SampleIntervalMin
	interval := time.Duration(e.cfg.SampleIntervalMin) * time.Minute
	trajectories := e.pool.SampleTrajectories(ctx, objs, now, interval, samples)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("trajectories sampled",
		"objects", len(objs),
		"sampled", len(trajectories),
		"samples_per_object", samples,
	)

	// Bucket by altitude band. Band order is fixed so runs are reproducible.
	bands := map[Band][]propagation.Trajectory{}
	for _, traj := range trajectories {
		band := BandFor(traj.AltitudeKm)
		bands[band] = append(bands[band], traj)
	}

	byKey := map[[2]int]Conjunction{}
	for _, band := range []Band{BandLEO, BandMEO, BandGEO} {
		if err := ctx.Err(); err != nil {
			return e.persistPartial(ctx, byKey, err)
		}
		e.screenBand(ctx, bands[band], now, byKey)
	}

	records := make([]Conjunction, 0, len(byKey))
	for _, rec := range byKey {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CatLow != records[j].CatLow {
			return records[i].CatLow < records[j].CatLow
		}
		return records[i].CatHigh < records[j].CatHigh
	})

	if err := e.persist(ctx, records); err != nil {
		return records, err
	}

	for _, rec := range records {
		metrics.IncConjunctions(rec.RiskLevel, 1)
	}
	e.logger.Info("detection run complete",
		"conjunctions", len(records),
		"bands", len(bands),
	)
	return records, nil
}

// screenBand scans ordered pairs within one band, applying the altitude
// prefilter and the storage threshold, and merges survivors into byKey.
func (e *Engine) screenBand(ctx context.Context, trajs []propagation.Trajectory, now time.Time, byKey map[[2]int]Conjunction) {
	// Deterministic pair order within the band.
	sort.Slice(trajs, func(i, j int) bool { return trajs[i].CatalogID < trajs[j].CatalogID })

	for i := 0; i < len(trajs); i++ {
		for j := i + 1; j < len(trajs); j++ {
			a, b := trajs[i], trajs[j]
			if math.Abs(a.AltitudeKm-b.AltitudeKm) > e.cfg.AltitudePrefilterKm {
				continue
			}

			minKm, tca, ok := closestApproach(a, b)
			if !ok || minKm >= e.cfg.StorageThresholdKm {
				continue
			}

			rec := e.buildRecord(ctx, a.CatalogID, b.CatalogID, minKm, tca, now)
			byKey[rec.Key()] = rec
		}
	}
}

// closestApproach walks the paired samples of two trajectories and returns the
// minimum separation and its sample time. Earlier samples win distance ties.
func closestApproach(a, b propagation.Trajectory) (float64, time.Time, bool) {
	n := len(a.Points)
	if len(b.Points) < n {
		n = len(b.Points)
	}
	if n == 0 {
		return 0, time.Time{}, false
	}

	best := math.Inf(1)
	var bestT time.Time
	for k := 0; k < n; k++ {
		dx := a.Points[k].XKm - b.Points[k].XKm
		dy := a.Points[k].YKm - b.Points[k].YKm
		dz := a.Points[k].ZKm - b.Points[k].ZKm
		d2 := dx*dx + dy*dy + dz*dz
		if d2 < best {
			best = d2
			bestT = a.Points[k].T
		}
	}
	return math.Sqrt(best), bestT, true
}

// buildRecord assembles the persisted conjunction for a surviving pair. The
// Pc computation never aborts a run; on failure the record carries Pc 0, the
// distance-ladder level, and no uncertainty payload.
func (e *Engine) buildRecord(ctx context.Context, catA, catB int, minKm float64, tca, now time.Time) Conjunction {
	low, high := CanonicalPair(catA, catB)
	rec := Conjunction{
		CatLow:               low,
		CatHigh:              high,
		ClosestApproachKm:    minKm,
		TCA:                  tca,
		RelativeVelocityKmS:  2 * meanOrbitalSpeedKmS,
		RiskLevel:            levelFromDistance(minKm),
		ProbabilityFormatted: collision.FormatProbability(0),
		PrimaryRadiusM:       collision.DefaultPrimaryRadiusM,
		SecondaryRadiusM:     collision.DefaultSecondaryRadiusM,
		CreatedAt:            now,
	}

	objA, errA := e.store.FindObject(ctx, catA)
	objB, errB := e.store.FindObject(ctx, catB)
	if errA != nil || errB != nil {
		return rec
	}

	result, err := collision.ComputePc(objA, objB, tca, e.cfg.Pc)
	if err != nil {
		e.logger.Warn("pc computation failed",
			"cat_low", low,
			"cat_high", high,
			"error", err,
		)
		return rec
	}

	rec.ProbabilityOfCollision = result.Pc
	rec.ProbabilityFormatted = result.Formatted
	rec.RiskLevel = result.RiskLevel
	rec.Uncertainty = result.Uncertainty
	rec.PrimaryRadiusM = result.PrimaryRadiusM
	rec.SecondaryRadiusM = result.SecondaryRadiusM
	return rec
}

// levelFromDistance is the distance-only risk ladder used before (or in place
// of) a Pc-derived level.
func levelFromDistance(km float64) string {
	switch {
	case km < 1:
		return "critical"
	case km < 5:
		return "high"
	case km < 10:
		return "moderate"
	default:
		return "low"
	}
}

// persist upserts the batch, degrading to per-record upserts on batch failure.
func (e *Engine) persist(ctx context.Context, records []Conjunction) error {
	if len(records) == 0 {
		return nil
	}

	err := e.store.BulkUpsertConjunctions(ctx, records)
	if err == nil {
		return nil
	}
	e.logger.Warn("batch conjunction upsert failed, retrying per record", "error", err)

	var stored int
	var lastErr error
	for _, rec := range records {
		if err := e.store.UpsertConjunction(ctx, rec); err != nil {
			lastErr = err
			e.logger.Error("conjunction upsert failed",
				"cat_low", rec.CatLow,
				"cat_high", rec.CatHigh,
				"error", err,
			)
			continue
		}
		stored++
	}
	if lastErr != nil {
		return fmt.Errorf("conjunction: stored %d/%d records: %w", stored, len(records), lastErr)
	}
	return nil
}

// persistPartial flushes whatever the run accumulated before cancellation.
// Already-upserted records stay in place; the cancellation still surfaces.
func (e *Engine) persistPartial(ctx context.Context, byKey map[[2]int]Conjunction, cause error) ([]Conjunction, error) {
	records := make([]Conjunction, 0, len(byKey))
	for _, rec := range byKey {
		records = append(records, rec)
	}
	if len(records) > 0 {
		if err := e.persist(context.WithoutCancel(ctx), records); err != nil {
			e.logger.Error("partial persist after cancellation failed", "error", err)
		}
	}
	return records, cause
}
