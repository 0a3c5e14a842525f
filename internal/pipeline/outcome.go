package pipeline

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

// Outcome is the per-file result of ProcessFile.
type Outcome struct {
	File    string                `json:"file"`
	Status  constants.FileStatus  `json:"status"`
	Record  *entity.InvoiceRecord `json:"record,omitempty"`
	Raw     json.RawMessage       `json:"raw,omitempty"`
	Error   string                `json:"error,omitempty"`
	Elapsed time.Duration         `json:"elapsed_ns"`
}

func (o Outcome) OK() bool { return o.Status == constants.FileStatusProcessed }

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned   uint32 `json:"scanned"`   // files visited
	Matched   uint32 `json:"matched"`   // files with a .pdf extension
	Succeeded uint32 `json:"succeeded"` // rows appended
	Skipped   uint32 `json:"skipped"`   // duplicates
	Failed    uint32 `json:"failed"`
}

func (s *DirStats) add(o Outcome) {
	switch {
	case o.Status == constants.FileStatusProcessed:
		s.Succeeded++
	case o.Status == constants.FileStatusSkippedDuplicate:
		s.Skipped++
	default:
		s.Failed++
	}
}

// StatusFor maps an error kind onto a file status.
func StatusFor(err error) constants.FileStatus {
	switch common.KindOf(err) {
	case common.ErrInput:
		return constants.FileStatusFailedInput
	case common.ErrValidation:
		return constants.FileStatusFailedValidation
	case common.ErrSink:
		return constants.FileStatusFailedSink
	default:
		return constants.FileStatusFailedBackend
	}
}

// Metrics receives pipeline observations. A nil Metrics is allowed.
type Metrics interface {
	ObserveOutcome(status constants.FileStatus)
	ObserveStage(stage string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOutcome(constants.FileStatus) {}
func (noopMetrics) ObserveStage(string, time.Duration) {}
