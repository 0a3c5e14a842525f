package constants

// FileStatus is the terminal outcome of processing one invoice file.
type FileStatus string

// Stable values (they appear in logs, metrics labels and the UI).
const (
	FileStatusProcessed        FileStatus = "PROCESSED"
	FileStatusSkippedDuplicate FileStatus = "SKIPPED_DUPLICATE"
	FileStatusRejected         FileStatus = "REJECTED"          // not a pdf
	FileStatusFailedInput      FileStatus = "FAILED_INPUT"      // unreadable or unparsable pdf
	FileStatusFailedBackend    FileStatus = "FAILED_BACKEND"    // model call failed
	FileStatusFailedValidation FileStatus = "FAILED_VALIDATION" // model output did not fit the schema
	FileStatusFailedSink       FileStatus = "FAILED_SINK"       // csv write failed
)

// AllFileStatuses lists every status, in display order.
var AllFileStatuses = []FileStatus{
	FileStatusProcessed,
	FileStatusSkippedDuplicate,
	FileStatusRejected,
	FileStatusFailedInput,
	FileStatusFailedBackend,
	FileStatusFailedValidation,
	FileStatusFailedSink,
}

// Failed reports whether the status is one of the FAILED_* values.
func (s FileStatus) Failed() bool {
	switch s {
	case FileStatusFailedInput, FileStatusFailedBackend, FileStatusFailedValidation, FileStatusFailedSink:
		return true
	}
	return false
}
