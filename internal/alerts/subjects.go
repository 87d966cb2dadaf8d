package alerts

// NATS subject layout. Subjects nest by alert class so consumers can
// subscribe to one class or the whole tree.
const (
	SubjectPrefix = "astrashield"

	SubjectAlertsAll = "astrashield.alerts.>"

	SubjectConjunctions    = "astrashield.alerts.conjunctions"
	SubjectConjunctionFmt  = "astrashield.alerts.conjunctions.%s" // risk level
	SubjectReentries       = "astrashield.alerts.reentry"
	SubjectReentryFmt      = "astrashield.alerts.reentry.%s" // status
	SubjectDetectionStatus = "astrashield.alerts.detection.status"
)

// StreamName is the JetStream stream capturing all alert subjects.
const StreamName = "ASTRASHIELD_ALERTS"
