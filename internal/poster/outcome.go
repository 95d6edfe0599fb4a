package poster

// UploadStatus is the terminal state of one applier invocation.
type UploadStatus string

const (
	UploadApplied UploadStatus = "applied"
	UploadSkipped UploadStatus = "skipped"
	UploadFailed  UploadStatus = "failed"
)

// UploadOutcome is the result of one applier invocation.
type UploadOutcome struct {
	Record      Record
	Match       MatchResult
	Status      UploadStatus
	Err         error
	LabelsAdded []string
}

// Reason returns the failure or skip reason, or "".
func (o UploadOutcome) Reason() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}
