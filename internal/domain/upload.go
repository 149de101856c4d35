package domain

import "time"

// JobStatus is the state of one upload job.
type JobStatus string

const (
	JobIdle       JobStatus = "Idle"
	JobSelected   JobStatus = "Selected"
	JobUploading  JobStatus = "Uploading"
	JobUploaded   JobStatus = "Uploaded"
	JobPredicting JobStatus = "Predicting"
	JobPredicted  JobStatus = "Predicted"
	JobExporting  JobStatus = "Exporting"
	JobFailed     JobStatus = "Failed"
)

// Row is one record of a tabular upload.
type Row map[string]any

// PredictionSummary counts customers per risk bucket.
type PredictionSummary struct {
	TotalCustomers  int `json:"total_customers"`
	HighRiskCount   int `json:"high_risk_count"`
	MediumRiskCount int `json:"medium_risk_count"`
	LowRiskCount    int `json:"low_risk_count"`
}

// UploadJob is one run of the upload, predict and export pipeline.
type UploadJob struct {
	ID           string
	UploadID     *int
	Filename     string
	Columns      []string
	PreviewRows  []Row
	TotalRows    int
	Status       JobStatus
	LastGood     JobStatus
	ErrorMessage string
	Summary      *PredictionSummary
	Results      []Row
}

// Clone returns a deep-enough copy safe to hand to callers.
func (j UploadJob) Clone() UploadJob {
	out := j
	if j.UploadID != nil {
		id := *j.UploadID
		out.UploadID = &id
	}
	out.Columns = append([]string(nil), j.Columns...)
	out.PreviewRows = append([]Row(nil), j.PreviewRows...)
	out.Results = append([]Row(nil), j.Results...)
	if j.Summary != nil {
		s := *j.Summary
		out.Summary = &s
	}
	return out
}

// HistoryItem is one past upload of a staff member.
type HistoryItem struct {
	ID         int       `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	Status     string    `json:"status"`
}
