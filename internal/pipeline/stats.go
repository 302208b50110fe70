package pipeline

import (
	"strings"

	"github.com/backmassage/scanmaster/internal/writer"
)

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	Groups            int
	Current           int
	Converted         int
	ConversionsFailed int
	Archived          int
	ArchivesFailed    int
	Rejected          int
	TotalInputBytes   int64
	TotalOutputBytes  int64
}

// Add folds one outcome into the counters.
func (s *RunStats) Add(out writer.Outcome) {
	if strings.HasPrefix(out.Action, "archive") {
		if out.Success {
			s.Archived++
			if out.Action == writer.ActionArchiveRejected {
				s.Rejected++
			}
		} else {
			s.ArchivesFailed++
		}
		return
	}
	if out.Success {
		s.Converted++
		s.TotalInputBytes += out.SourceSizeBytes
		s.TotalOutputBytes += out.SizeBytes
	} else {
		s.ConversionsFailed++
	}
}

// SpaceSaved returns the aggregate byte difference between sources and
// outputs. Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}
