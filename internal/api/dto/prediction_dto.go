package dto

import "github.com/spec-kit/telepredict/internal/domain"

// UploadResponse is returned after a dataset upload.
type UploadResponse struct {
	UploadID  int          `json:"upload_id"`
	Columns   []string     `json:"columns"`
	Preview   []domain.Row `json:"preview"`
	TotalRows int          `json:"total_rows,omitempty"`
	Filename  string       `json:"filename,omitempty"`
}

// PredictRequest asks for predictions on an uploaded dataset.
type PredictRequest struct {
	UploadID int `json:"upload_id"`
}

// PredictResponse carries per-row results and the bucket summary.
type PredictResponse struct {
	Results []domain.Row             `json:"results"`
	Summary domain.PredictionSummary `json:"summary"`
}
