package query

// Intent is the classification outcome for a query.
type Intent string

const (
	IntentBlocked   Intent = "BLOCKED"
	IntentRepeat    Intent = "REPEAT"
	IntentLowSignal Intent = "LOW_SIGNAL"
	IntentValid     Intent = "VALID"
	IntentVague     Intent = "VAGUE_BUT_SALVAGEABLE"
)

// Admitted reports whether the query proceeds to candidate retrieval.
// REPEAT is admitted; the generation cache answers it.
func (i Intent) Admitted() bool {
	switch i {
	case IntentValid, IntentVague, IntentRepeat:
		return true
	default:
		return false
	}
}

// ProcessedQuery is the result of classification. Treat it as immutable.
type ProcessedQuery struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
	Hash       string `json:"hash"`
	Intent     Intent `json:"intent"`
	Reason     string `json:"reason,omitempty"`

	// SafetyDegraded is set when the safety check could not complete and
	// the query was let through.
	SafetyDegraded bool `json:"safety_degraded,omitempty"`
}
