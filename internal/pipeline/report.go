package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"github.com/backmassage/scanmaster/internal/writer"
)

// State is the orchestrator's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateSelecting  State = "selecting"
	StateConverting State = "converting"
	StateArchiving  State = "archiving"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// GroupResult records every operation attempted for one scan group.
type GroupResult struct {
	Stem      string             `json:"stem"`
	Chosen    string             `json:"chosen,omitempty"`
	Reason    string             `json:"selection_reason,omitempty"`
	Ambiguous bool               `json:"ambiguous,omitempty"`
	Scores    map[string]float64 `json:"scores,omitempty"`
	Success   bool               `json:"success"`
	Outcomes  []writer.Outcome   `json:"outcomes"`
}

// Report is the durable audit artifact of a batch run.
type Report struct {
	SourceDir  string        `json:"source_dir"`
	State      State         `json:"state"`
	DryRun     bool          `json:"dry_run,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Groups     []GroupResult `json:"groups"`
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
