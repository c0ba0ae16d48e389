package migration

import "strings"

type Status string

const (
	StatusStarted    Status = "Started"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureReason is the machine-readable cause stored next to a Failed status.
type FailureReason string

const (
	ReasonDownloadFailed       FailureReason = "download_failed"
	ReasonInvalidArchive       FailureReason = "invalid_archive"
	ReasonNoConvertibleContent FailureReason = "no_convertible_content"
	ReasonUploadFailed         FailureReason = "upload_failed"
	ReasonAuthenticationFailed FailureReason = "authentication_failed"
	ReasonNotificationFailed   FailureReason = "notification_failed"
	ReasonInternalError        FailureReason = "internal_error"
)

// Job is one archive conversion request.
type Job struct {
	ID     string
	Source ObjectLocation
	// LockToken identifies the run holding the job lock; only that run may
	// release it.
	LockToken string
}

// ValidJobID reports whether id, already trimmed, can key a job. Path
// separators are refused because the id names files and store keys.
func ValidJobID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/\\")
}

func NewJob(id, sourceLink string) (Job, error) {
	id = strings.TrimSpace(id)
	if !ValidJobID(id) {
		return Job{}, ErrInvalidJobID
	}

	source, err := ParseS3Link(sourceLink)
	if err != nil {
		return Job{}, err
	}

	return Job{ID: id, Source: source}, nil
}

// OutputName is the file name of the converted archive.
func (j Job) OutputName() string {
	return j.ID + ".zip"
}
