// Package alerts fans detection results out over NATS JetStream. Publishing
// is best-effort: a broker outage degrades alerting, never the pipeline.
package alerts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/metrics"
	"github.com/astra/astrashield/internal/reentry"
)

// dedupWindow is the JetStream duplicate-suppression window. Re-running
// detection inside the window does not re-alert the same event.
const dedupWindow = 10 * time.Minute

// ConjunctionAlert is the wire payload for a close-approach alert.
type ConjunctionAlert struct {
	CatLow               int       `json:"cat_low"`
	CatHigh              int       `json:"cat_high"`
	ClosestApproachKm    float64   `json:"closest_approach_km"`
	TCA                  time.Time `json:"tca"`
	RiskLevel            string    `json:"risk_level"`
	ProbabilityFormatted string    `json:"probability_formatted"`
	EmittedAt            time.Time `json:"emitted_at"`
}

// ReentryAlert is the wire payload for a decay alert.
type ReentryAlert struct {
	CatalogID        int       `json:"catalog_id"`
	Name             string    `json:"name"`
	AltitudeKm       float64   `json:"altitude_km"`
	DaysUntilReentry float64   `json:"days_until_reentry"`
	Status           string    `json:"status"`
	Uncontrolled     bool      `json:"uncontrolled"`
	EmittedAt        time.Time `json:"emitted_at"`
}

// Publisher writes alerts to JetStream.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// Connect dials the broker and ensures the alert stream exists.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("astrashield"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("alerts: connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("alerts: jetstream context: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectAlertsAll},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: dedupWindow,
		Discard:    nats.DiscardOld,
	}
	if _, err := js.StreamInfo(StreamName); err == nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			nc.Close()
			return nil, fmt.Errorf("alerts: update stream: %w", err)
		}
	} else if _, err := js.AddStream(cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("alerts: create stream: %w", err)
	}

	return &Publisher{nc: nc, js: js, logger: logger}, nil
}

// PublishConjunctions emits one alert per high or critical record onto the
// per-level subject. Lower levels stay in the store only, so the bus carries
// actionable events rather than every screened pair. Failures are logged and
// counted, not returned.
func (p *Publisher) PublishConjunctions(recs []conjunction.Conjunction, now time.Time) {
	for _, rec := range recs {
		if rec.RiskLevel != "high" && rec.RiskLevel != "critical" {
			continue
		}
		alert := ConjunctionAlert{
			CatLow:               rec.CatLow,
			CatHigh:              rec.CatHigh,
			ClosestApproachKm:    rec.ClosestApproachKm,
			TCA:                  rec.TCA,
			RiskLevel:            rec.RiskLevel,
			ProbabilityFormatted: rec.ProbabilityFormatted,
			EmittedAt:            now,
		}
		subject := fmt.Sprintf(SubjectConjunctionFmt, rec.RiskLevel)
		msgID := dedupID("conjunction", fmt.Sprintf("%d:%d:%d", rec.CatLow, rec.CatHigh, rec.TCA.Unix()))
		p.publish("conjunction", subject, msgID, alert)
	}
}

// PublishReentries emits one alert per critical prediction with a pending
// entry. Warning and elevated candidates reappear on later scans if they
// decay into the critical window.
func (p *Publisher) PublishReentries(preds []reentry.Prediction, now time.Time) {
	for _, pred := range preds {
		if !pred.ReentryPredicted || pred.Status != "critical" {
			continue
		}
		alert := ReentryAlert{
			CatalogID:        pred.CatalogID,
			Name:             pred.Name,
			AltitudeKm:       pred.AltitudeKm,
			DaysUntilReentry: pred.DaysUntilReentry,
			Status:           pred.Status,
			Uncontrolled:     pred.Uncontrolled,
			EmittedAt:        now,
		}
		subject := fmt.Sprintf(SubjectReentryFmt, pred.Status)
		msgID := dedupID("reentry", fmt.Sprintf("%d:%s:%d", pred.CatalogID, pred.Status, now.Truncate(dedupWindow).Unix()))
		p.publish("reentry", subject, msgID, alert)
	}
}

func (p *Publisher) publish(class, subject, msgID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordAlertPublish(class, err)
		p.logger.Error("alert encoding failed", "subject", subject, "error", err)
		return
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", msgID)

	if _, err := p.js.PublishMsg(msg); err != nil {
		metrics.RecordAlertPublish(class, err)
		p.logger.Warn("alert publish failed", "subject", subject, "error", err)
		return
	}
	metrics.RecordAlertPublish(class, nil)
}

// dedupID derives a stable message id from the event identity, so repeated
// runs inside the duplicate window collapse to one delivery.
func dedupID(class, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(class+":"+key)).String()
}

// Close drains the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
	}
}
