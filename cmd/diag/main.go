// Command diag runs one offline detection pass over a local element-set file
// and prints the results. Useful for sanity-checking a catalog snapshot
// without a database or broker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/reentry"
	"github.com/astra/astrashield/internal/risk"
	"github.com/astra/astrashield/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: diag <elements.txt>")
		os.Exit(2)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR opening element file:", err)
		os.Exit(1)
	}
	defer f.Close()

	objs, err := elements.Parse(f, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR parsing element sets:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d objects\n", len(objs))
	if len(objs) > 0 {
		fmt.Printf("First object: %s (catalog %d) epoch %v\n",
			objs[0].Name, objs[0].CatalogID, objs[0].Epoch().Format(time.RFC3339))
	}

	ctx := context.Background()
	st := store.NewMemory()
	if err := st.BulkUpsertObjects(ctx, objs); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR loading store:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	fmt.Printf("Detection anchor: %v\n", now.Format(time.RFC3339))

	engine := conjunction.NewEngine(st, conjunction.Config{}, logger)
	recs, err := engine.Run(ctx, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR running detection:", err)
		os.Exit(1)
	}
	fmt.Printf("Conjunctions within %g km: %d\n", conjunction.DefaultStorageThresholdKm, len(recs))
	for _, rec := range recs {
		fmt.Printf("  %d x %d: %.3f km at %v, %s, Pc %s\n",
			rec.CatLow, rec.CatHigh, rec.ClosestApproachKm,
			rec.TCA.Format(time.RFC3339), rec.RiskLevel, rec.ProbabilityFormatted)
	}

	scorer := risk.NewScorer(st, 0, logger)
	scores, err := scorer.Score(ctx, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR scoring risks:", err)
		os.Exit(1)
	}
	top, topScore := 0, -1.0
	for _, sc := range scores {
		if sc.RiskScore > topScore {
			top, topScore = sc.CatalogID, sc.RiskScore
		}
	}
	if topScore >= 0 {
		fmt.Printf("Scored %d objects, highest risk %.3f (catalog %d)\n", len(scores), topScore, top)
	}

	predictor := reentry.NewPredictor(st, reentry.Config{}, logger)
	preds, err := predictor.Scan(ctx, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR predicting reentries:", err)
		os.Exit(1)
	}
	fmt.Printf("Reentry candidates below %g km: %d\n", reentry.AltitudeThresholdKm, len(preds))
	for _, p := range preds {
		if !p.ReentryPredicted {
			fmt.Printf("  %d %s: %.0f km, no entry within horizon\n", p.CatalogID, p.Name, p.AltitudeKm)
			continue
		}
		fmt.Printf("  %d %s: %.0f km, %.1f days (%s, confidence %s, uncontrolled %v)\n",
			p.CatalogID, p.Name, p.AltitudeKm, p.DaysUntilReentry,
			p.Status, p.Confidence, p.Uncontrolled)
	}
}
