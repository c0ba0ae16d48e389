package migration

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// StatusRecord is the progress document persisted per job id.
type StatusRecord struct {
	Status     Status        `json:"status"`
	Percentage string        `json:"percentage"`
	Reason     FailureReason `json:"reason,omitempty"`
}

func StartedRecord() StatusRecord {
	return StatusRecord{Status: StatusStarted, Percentage: formatPercentage(0)}
}

func InProgressRecord(percentage int) StatusRecord {
	return StatusRecord{Status: StatusInProgress, Percentage: formatPercentage(percentage)}
}

func CompletedRecord() StatusRecord {
	return StatusRecord{Status: StatusCompleted, Percentage: formatPercentage(100)}
}

// FailedRecord leaves the percentage blank.
func FailedRecord(reason FailureReason) StatusRecord {
	return StatusRecord{Status: StatusFailed, Reason: reason}
}

// ProgressPercentage is round(processed/total*100), held below 100 so that only
// a completed job reports 100%.
func ProgressPercentage(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	pct := int(math.Round(float64(processed) / float64(total) * 100))
	if pct > 99 {
		return 99
	}
	return pct
}

func (r StatusRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// ParseStatusRecord decodes a stored record. A record that decodes but carries
// no status is ErrStatusEmpty.
func ParseStatusRecord(raw []byte) (StatusRecord, error) {
	var record *StatusRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return StatusRecord{}, fmt.Errorf("%w: %v", ErrStatusCorrupted, err)
	}
	if record == nil || record.Status == "" {
		return StatusRecord{}, ErrStatusEmpty
	}
	return *record, nil
}

func formatPercentage(v int) string {
	return strconv.Itoa(v) + "%"
}
