package schemas

import "time"

// ScenarioStatus is the terminal state of one scenario execution.
type ScenarioStatus string

const (
	ScenarioPassed  ScenarioStatus = "passed"
	ScenarioFailed  ScenarioStatus = "failed"
	ScenarioSkipped ScenarioStatus = "skipped"
)

// TranscriptEntry is one recorded HTTP transaction made through the gateway.
type TranscriptEntry struct {
	StartedAt    time.Time `json:"started_at"`
	DurationMs   float64   `json:"duration_ms"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	Status       int       `json:"status"`
	RequestBody  string    `json:"request_body,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// ScenarioResult is the persisted outcome of one scenario execution.
type ScenarioResult struct {
	RunID      string            `json:"run_id"`
	Scenario   string            `json:"scenario"`
	Identity   string            `json:"identity"`
	Status     ScenarioStatus    `json:"status"`
	Detail     string            `json:"detail,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
}
