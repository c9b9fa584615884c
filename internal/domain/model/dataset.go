package model

import (
	"strings"
	"time"
)

type DatasetStatus string

const (
	DatasetReady      DatasetStatus = "ready"
	DatasetProcessing DatasetStatus = "processing"
	DatasetError      DatasetStatus = "error"
)

// PurposeFineTuning is the only dataset purpose the gateway accepts.
const PurposeFineTuning = "fine-tuning"

// Dataset is an uploaded training file and its processing state.
type Dataset struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Purpose      string        `json:"purpose"`
	SizeBytes    int64         `json:"sizeBytes"`
	Size         string        `json:"size"`
	UploadDate   time.Time     `json:"uploadDate"`
	Samples      int           `json:"samples"`
	Status       DatasetStatus `json:"status"`
	StatusReason string        `json:"statusReason,omitempty"`
	FilePath     string        `json:"-"`
}

// Label is a classification outcome.
type Label string

const (
	LabelConfirmed     Label = "CONFIRMED"
	LabelCandidate     Label = "CANDIDATE"
	LabelFalsePositive Label = "FALSE POSITIVE"
)

// Labels is the closed set of classes, in display order.
var Labels = []Label{LabelConfirmed, LabelCandidate, LabelFalsePositive}

// ParseLabel accepts a class name, tolerating case and "_" for spaces.
func ParseLabel(s string) (Label, bool) {
	switch normalizeLabel(s) {
	case "CONFIRMED":
		return LabelConfirmed, true
	case "CANDIDATE":
		return LabelCandidate, true
	case "FALSE POSITIVE":
		return LabelFalsePositive, true
	}
	return "", false
}

func normalizeLabel(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
}
