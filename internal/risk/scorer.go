// Package risk scores each tracked object on a [0,1] scale by combining
// local congestion (how crowded its altitude band is, how close its nearest
// neighbor sits) with recent conjunction history.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/propagation"
)

// Scoring constants.
const (
	// recentWindow bounds the conjunction lookback for the history term.
	recentWindow = 6 * time.Hour

	// referenceSpeedKmS normalizes the relative-velocity term.
	referenceSpeedKmS = 7.5

	// conjunctionHorizonKm is the distance at which a recent conjunction
	// stops contributing risk.
	conjunctionHorizonKm = 10.0

	congestionWeight  = 0.4
	conjunctionWeight = 0.6
)

// Store is the persistence surface the scorer needs.
type Store interface {
	ListObjects(ctx context.Context, limit int) ([]elements.Object, error)
	ListConjunctions(ctx context.Context, since time.Time) ([]conjunction.Conjunction, error)
	BulkUpsertObjects(ctx context.Context, objs []elements.Object) error
}

// Score is one object's composite risk.
type Score struct {
	CatalogID int     `json:"catalog_id"`
	RiskScore float64 `json:"risk_score"`
}

// Scorer computes and persists risk scores.
type Scorer struct {
	store      Store
	maxObjects int
	logger     *slog.Logger
}

// NewScorer creates a scorer over the given store. maxObjects bounds the
// population per pass; 0 selects the detector default.
func NewScorer(store Store, maxObjects int, logger *slog.Logger) *Scorer {
	if maxObjects <= 0 {
		maxObjects = conjunction.DefaultMaxObjects
	}
	return &Scorer{store: store, maxObjects: maxObjects, logger: logger}
}

// Score runs one scoring pass anchored at now: an all-pairs distance pass over
// current positions feeds the congestion term, the last six hours of
// conjunctions feed the history term, and the composite scores are written
// back in one bulk upsert.
func (s *Scorer) Score(ctx context.Context, now time.Time) ([]Score, error) {
	objs, err := s.store.ListObjects(ctx, s.maxObjects)
	if err != nil {
		return nil, fmt.Errorf("risk: load objects: %w", err)
	}
	if len(objs) == 0 {
		return nil, nil
	}

	recent, err := s.store.ListConjunctions(ctx, now.Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("risk: load recent conjunctions: %w", err)
	}
	closestRecent := closestRecentByObject(recent)

	positions := currentPositions(objs, now, s.logger)
	density := bandDensity(objs)

	scores := make([]Score, 0, len(objs))
	for i := range objs {
		dMin := nearestNeighborKm(objs[i].CatalogID, positions)
		congestion := CongestionRisk(dMin, 2*referenceSpeedKmS, density[conjunction.BandFor(objs[i].OrbitalAltitudeKm)])

		history := 0.0
		if dRecent, ok := closestRecent[objs[i].CatalogID]; ok {
			history = ConjunctionRisk(dRecent)
		}

		score := Composite(congestion, history)
		objs[i].RiskScore = score
		objs[i].LastUpdated = now
		scores = append(scores, Score{CatalogID: objs[i].CatalogID, RiskScore: score})
	}

	if err := s.store.BulkUpsertObjects(ctx, objs); err != nil {
		return nil, fmt.Errorf("risk: persist scores: %w", err)
	}
	s.logger.Info("risk scoring complete", "objects", len(scores))
	return scores, nil
}

// CongestionRisk combines nearest-neighbor distance, relative speed, and band
// crowding into a [0,1] score. dMinKm below zero or infinite means no
// neighbor and scores zero.
func CongestionRisk(dMinKm, vRelKmS, density float64) float64 {
	if math.IsInf(dMinKm, 1) || dMinKm < 0 {
		return 0
	}
	factor := clamp(density/100*2, 0, 3)
	speed := math.Min(vRelKmS/referenceSpeedKmS, 1)
	return clamp(100*(1/(dMinKm+1))*speed*factor, 0, 1)
}

// ConjunctionRisk maps the closest recent conjunction distance to [0,1],
// linear from 1 at contact to 0 at the horizon.
func ConjunctionRisk(dMinRecentKm float64) float64 {
	return clamp(1-dMinRecentKm/conjunctionHorizonKm, 0, 1)
}

// Composite blends the two terms with fixed weights and clamps to [0,1].
func Composite(congestionRisk, conjunctionRisk float64) float64 {
	return clamp(congestionWeight*congestionRisk+conjunctionWeight*conjunctionRisk, 0, 1)
}

// position pairs a catalog id with its km-scale position at the pass anchor.
type position struct {
	catalogID int
	x, y, z   float64
}

// currentPositions propagates each object to now. Failures drop the object
// from the distance pass; it still receives a history-only score.
func currentPositions(objs []elements.Object, now time.Time, logger *slog.Logger) []position {
	out := make([]position, 0, len(objs))
	for _, obj := range objs {
		adapter, err := propagation.NewAdapter(obj)
		if err != nil {
			logger.Warn("risk pass skipping object", "catalog_id", obj.CatalogID, "error", err)
			continue
		}
		state, err := adapter.PropagateECI(now)
		if err != nil {
			logger.Warn("risk pass skipping object", "catalog_id", obj.CatalogID, "error", err)
			continue
		}
		out = append(out, position{catalogID: obj.CatalogID, x: state.X, y: state.Y, z: state.Z})
	}
	return out
}

// nearestNeighborKm returns the minimum distance from the identified object
// to any other propagated object, or +Inf when it has no neighbor.
func nearestNeighborKm(catalogID int, positions []position) float64 {
	var self *position
	for i := range positions {
		if positions[i].catalogID == catalogID {
			self = &positions[i]
			break
		}
	}
	if self == nil {
		return math.Inf(1)
	}

	best := math.Inf(1)
	for i := range positions {
		if positions[i].catalogID == catalogID {
			continue
		}
		dx := positions[i].x - self.x
		dy := positions[i].y - self.y
		dz := positions[i].z - self.z
		if d2 := dx*dx + dy*dy + dz*dz; d2 < best {
			best = d2
		}
	}
	if math.IsInf(best, 1) {
		return best
	}
	return math.Sqrt(best)
}

// bandDensity counts objects per altitude band.
func bandDensity(objs []elements.Object) map[conjunction.Band]float64 {
	out := map[conjunction.Band]float64{}
	for _, obj := range objs {
		out[conjunction.BandFor(obj.OrbitalAltitudeKm)]++
	}
	return out
}

// closestRecentByObject reduces recent conjunctions to the closest approach
// seen per participating object.
func closestRecentByObject(recs []conjunction.Conjunction) map[int]float64 {
	out := map[int]float64{}
	for _, rec := range recs {
		for _, id := range []int{rec.CatLow, rec.CatHigh} {
			if d, ok := out[id]; !ok || rec.ClosestApproachKm < d {
				out[id] = rec.ClosestApproachKm
			}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
