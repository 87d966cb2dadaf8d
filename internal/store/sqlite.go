package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/astra/astrashield/internal/collision"
	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/metrics"
)

//go:embed schema.sql
var schemaFS embed.FS

// timeFormat is RFC3339 with fixed nanosecond width, so stored timestamps
// compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the durable Store backed by a single SQLite file. A single open
// connection serializes writes, which SQLite requires anyway.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and on first use initializes) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

const objectColumns = `catalog_id, name, international_designator, line1, line2,
	epoch_year, epoch_day, mean_motion_dot, bstar, inclination_deg, eccentricity,
	raan_deg, argument_of_perigee_deg, mean_anomaly_deg, mean_motion,
	orbital_altitude_km, orbital_period_min, risk_score, last_updated`

func (s *SQLite) ListObjects(ctx context.Context, limit int) ([]elements.Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects ORDER BY catalog_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreOp("list_objects", err)
		return nil, fmt.Errorf("store: list objects: %w", err)
	}
	defer rows.Close()

	var out []elements.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			metrics.RecordStoreOp("list_objects", err)
			return nil, fmt.Errorf("store: scan object: %w", err)
		}
		out = append(out, obj)
	}
	metrics.RecordStoreOp("list_objects", rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list objects: %w", err)
	}
	return out, nil
}

func (s *SQLite) FindObject(ctx context.Context, catalogID int) (elements.Object, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE catalog_id = ?`, catalogID)
	obj, err := scanObject(row)
	if err == sql.ErrNoRows {
		return elements.Object{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreOp("find_object", err)
		return elements.Object{}, fmt.Errorf("store: find object %d: %w", catalogID, err)
	}
	return obj, nil
}

func (s *SQLite) BulkUpsertObjects(ctx context.Context, objs []elements.Object) error {
	err := s.transact(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO objects (`+objectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (catalog_id) DO UPDATE SET
				name = excluded.name,
				international_designator = excluded.international_designator,
				line1 = excluded.line1,
				line2 = excluded.line2,
				epoch_year = excluded.epoch_year,
				epoch_day = excluded.epoch_day,
				mean_motion_dot = excluded.mean_motion_dot,
				bstar = excluded.bstar,
				inclination_deg = excluded.inclination_deg,
				eccentricity = excluded.eccentricity,
				raan_deg = excluded.raan_deg,
				argument_of_perigee_deg = excluded.argument_of_perigee_deg,
				mean_anomaly_deg = excluded.mean_anomaly_deg,
				mean_motion = excluded.mean_motion,
				orbital_altitude_km = excluded.orbital_altitude_km,
				orbital_period_min = excluded.orbital_period_min,
				risk_score = excluded.risk_score,
				last_updated = excluded.last_updated`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, obj := range objs {
			if _, err := stmt.ExecContext(ctx,
				obj.CatalogID, obj.Name, obj.IntlDesignat, obj.Line1, obj.Line2,
				obj.EpochYear, obj.EpochDay, obj.MeanMotionDot, obj.BStar,
				obj.InclinationDeg, obj.Eccentricity, obj.RAANDeg, obj.ArgPerigeeDeg,
				obj.MeanAnomalyDeg, obj.MeanMotion, obj.OrbitalAltitudeKm,
				obj.OrbitalPeriodMin, obj.RiskScore, obj.LastUpdated.UTC().Format(timeFormat),
			); err != nil {
				return fmt.Errorf("object %d: %w", obj.CatalogID, err)
			}
		}
		return nil
	})
	metrics.RecordStoreOp("upsert_objects", err)
	if err != nil {
		return fmt.Errorf("store: upsert objects: %w", err)
	}
	return nil
}

const conjunctionColumns = `cat_low, cat_high, closest_approach_km, tca,
	relative_velocity_km_s, risk_level, probability_of_collision,
	probability_formatted, uncertainty, primary_radius_m, secondary_radius_m,
	created_at`

func (s *SQLite) ListConjunctions(ctx context.Context, since time.Time) ([]conjunction.Conjunction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conjunctionColumns+` FROM conjunctions
		 WHERE created_at >= ? ORDER BY cat_low, cat_high`,
		since.UTC().Format(timeFormat))
	if err != nil {
		metrics.RecordStoreOp("list_conjunctions", err)
		return nil, fmt.Errorf("store: list conjunctions: %w", err)
	}
	defer rows.Close()

	var out []conjunction.Conjunction
	for rows.Next() {
		rec, err := scanConjunction(rows)
		if err != nil {
			metrics.RecordStoreOp("list_conjunctions", err)
			return nil, fmt.Errorf("store: scan conjunction: %w", err)
		}
		out = append(out, rec)
	}
	metrics.RecordStoreOp("list_conjunctions", rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list conjunctions: %w", err)
	}
	return out, nil
}

func (s *SQLite) BulkUpsertConjunctions(ctx context.Context, recs []conjunction.Conjunction) error {
	err := s.transact(ctx, func(tx *sql.Tx) error {
		for _, rec := range recs {
			if err := upsertConjunctionExec(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.RecordStoreOp("upsert_conjunctions", err)
	if err != nil {
		return fmt.Errorf("store: upsert conjunctions: %w", err)
	}
	return nil
}

func (s *SQLite) UpsertConjunction(ctx context.Context, rec conjunction.Conjunction) error {
	err := upsertConjunctionExec(ctx, s.db, rec)
	metrics.RecordStoreOp("upsert_conjunction", err)
	if err != nil {
		return fmt.Errorf("store: upsert conjunction (%d,%d): %w", rec.CatLow, rec.CatHigh, err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertConjunctionExec(ctx context.Context, db execer, rec conjunction.Conjunction) error {
	var uncertainty any
	if rec.Uncertainty != nil {
		blob, err := json.Marshal(rec.Uncertainty)
		if err != nil {
			return fmt.Errorf("encode uncertainty: %w", err)
		}
		uncertainty = string(blob)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO conjunctions (`+conjunctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cat_low, cat_high) DO UPDATE SET
			closest_approach_km = excluded.closest_approach_km,
			tca = excluded.tca,
			relative_velocity_km_s = excluded.relative_velocity_km_s,
			risk_level = excluded.risk_level,
			probability_of_collision = excluded.probability_of_collision,
			probability_formatted = excluded.probability_formatted,
			uncertainty = excluded.uncertainty,
			primary_radius_m = excluded.primary_radius_m,
			secondary_radius_m = excluded.secondary_radius_m,
			created_at = excluded.created_at`,
		rec.CatLow, rec.CatHigh, rec.ClosestApproachKm,
		rec.TCA.UTC().Format(timeFormat),
		rec.RelativeVelocityKmS, rec.RiskLevel, rec.ProbabilityOfCollision,
		rec.ProbabilityFormatted, uncertainty,
		rec.PrimaryRadiusM, rec.SecondaryRadiusM,
		rec.CreatedAt.UTC().Format(timeFormat))
	return err
}

func (s *SQLite) transact(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (elements.Object, error) {
	var obj elements.Object
	var lastUpdated string
	err := row.Scan(
		&obj.CatalogID, &obj.Name, &obj.IntlDesignat, &obj.Line1, &obj.Line2,
		&obj.EpochYear, &obj.EpochDay, &obj.MeanMotionDot, &obj.BStar,
		&obj.InclinationDeg, &obj.Eccentricity, &obj.RAANDeg, &obj.ArgPerigeeDeg,
		&obj.MeanAnomalyDeg, &obj.MeanMotion, &obj.OrbitalAltitudeKm,
		&obj.OrbitalPeriodMin, &obj.RiskScore, &lastUpdated,
	)
	if err != nil {
		return elements.Object{}, err
	}
	obj.LastUpdated, err = time.Parse(timeFormat, lastUpdated)
	if err != nil {
		return elements.Object{}, fmt.Errorf("parse last_updated: %w", err)
	}
	return obj, nil
}

func scanConjunction(row scanner) (conjunction.Conjunction, error) {
	var rec conjunction.Conjunction
	var tca, createdAt string
	var uncertainty sql.NullString
	err := row.Scan(
		&rec.CatLow, &rec.CatHigh, &rec.ClosestApproachKm, &tca,
		&rec.RelativeVelocityKmS, &rec.RiskLevel, &rec.ProbabilityOfCollision,
		&rec.ProbabilityFormatted, &uncertainty,
		&rec.PrimaryRadiusM, &rec.SecondaryRadiusM, &createdAt,
	)
	if err != nil {
		return conjunction.Conjunction{}, err
	}
	if rec.TCA, err = time.Parse(timeFormat, tca); err != nil {
		return conjunction.Conjunction{}, fmt.Errorf("parse tca: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return conjunction.Conjunction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if uncertainty.Valid {
		var u collision.Uncertainty
		if err := json.Unmarshal([]byte(uncertainty.String), &u); err != nil {
			return conjunction.Conjunction{}, fmt.Errorf("decode uncertainty: %w", err)
		}
		rec.Uncertainty = &u
	}
	return rec, nil
}
