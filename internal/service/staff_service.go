package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/events"
	"github.com/spec-kit/telepredict/internal/repository"
	"github.com/spec-kit/telepredict/internal/scoring"
	"github.com/spec-kit/telepredict/pkg/util"
)

// PreviewRows is how many rows an upload response previews.
const PreviewRows = 5

// Result columns appended to scored rows and exports.
const (
	ColumnProbability = "churn_probability"
	ColumnRiskLevel   = "risk_level"
)

const (
	msgNotCSV       = "Please upload a CSV file."
	msgEmptyDataset = "The uploaded file is empty."
)

// StaffService runs the dataset workflow for staff members.
type StaffService struct {
	datasets   repository.DatasetRepository
	dispatcher events.Dispatcher
}

// StaffDependencies bundles repositories for the staff service.
type StaffDependencies struct {
	DatasetRepo repository.DatasetRepository
	Dispatcher  events.Dispatcher
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	return &StaffService{datasets: deps.DatasetRepo, dispatcher: deps.Dispatcher}
}

// Upload parses and stores a CSV dataset for staffID.
func (s *StaffService) Upload(ctx context.Context, staffID, filename string, content io.Reader) (*repository.Dataset, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, util.NewValidationError(msgNotCSV, nil)
	}
	r := csv.NewReader(content)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, util.NewValidationError("Could not parse CSV: "+err.Error(), nil)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, util.NewValidationError(msgEmptyDataset, nil)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	ds := &repository.Dataset{
		StaffID:  staffID,
		Filename: filepath.Base(filename),
		Columns:  header,
		Rows:     records[1:],
	}
	if err := s.datasets.Create(ctx, ds); err != nil {
		return nil, util.NewInternalError(err)
	}
	publish(ctx, s.dispatcher, events.EventDatasetUploaded, staffID, map[string]any{
		"upload_id": ds.ID,
		"rows":      len(ds.Rows),
	})
	return ds, nil
}

// Preview returns up to n leading rows as records.
func Preview(ds *repository.Dataset, n int) []domain.Row {
	if n > len(ds.Rows) {
		n = len(ds.Rows)
	}
	out := make([]domain.Row, 0, n)
	for _, rec := range ds.Rows[:n] {
		out = append(out, toRow(ds.Columns, rec))
	}
	return out
}

// PredictionResult is the scored dataset.
type PredictionResult struct {
	Dataset *repository.Dataset
	Results []domain.Row
	Summary domain.PredictionSummary
}

// Predict scores every row of the staff member's dataset.
func (s *StaffService) Predict(ctx context.Context, staffID string, uploadID int) (*PredictionResult, error) {
	ds, err := s.owned(ctx, staffID, uploadID)
	if err != nil {
		return nil, err
	}
	if err := scoring.Validate(ds.Columns, len(ds.Rows)); err != nil {
		return nil, util.NewValidationError(err.Error(), nil)
	}

	scores := make([]float64, len(ds.Rows))
	results := make([]domain.Row, len(ds.Rows))
	for i, rec := range ds.Rows {
		values := make(map[string]string, len(ds.Columns))
		for j, col := range ds.Columns {
			if j < len(rec) {
				values[col] = rec[j]
			}
		}
		scores[i] = scoring.Score(values)
		row := toRow(ds.Columns, rec)
		row[ColumnProbability] = scores[i]
		row[ColumnRiskLevel] = scoring.Level(scores[i])
		results[i] = row
	}

	ds.Scores = scores
	ds.Status = repository.DatasetPredicted
	if err := s.datasets.Update(ctx, ds); err != nil {
		return nil, util.NewInternalError(err)
	}
	summary := scoring.Summarize(scores)
	publish(ctx, s.dispatcher, events.EventDatasetPredicted, staffID, map[string]any{
		"upload_id": ds.ID,
		"high_risk": summary.HighRiskCount,
	})
	return &PredictionResult{Dataset: ds, Results: results, Summary: summary}, nil
}

// Export renders the dataset as CSV, with result columns once it has been scored.
func (s *StaffService) Export(ctx context.Context, staffID string, uploadID int) ([]byte, error) {
	ds, err := s.owned(ctx, staffID, uploadID)
	if err != nil {
		return nil, err
	}
	scored := ds.Status == repository.DatasetPredicted && len(ds.Scores) == len(ds.Rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append([]string(nil), ds.Columns...)
	if scored {
		header = append(header, ColumnProbability, ColumnRiskLevel)
	}
	if err := w.Write(header); err != nil {
		return nil, util.NewInternalError(err)
	}
	for i, rec := range ds.Rows {
		line := append([]string(nil), rec...)
		if scored {
			line = append(line, strconv.FormatFloat(ds.Scores[i], 'f', 4, 64), scoring.Level(ds.Scores[i]))
		}
		if err := w.Write(line); err != nil {
			return nil, util.NewInternalError(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, util.NewInternalError(err)
	}
	publish(ctx, s.dispatcher, events.EventDatasetExported, staffID, map[string]any{"upload_id": ds.ID})
	return buf.Bytes(), nil
}

// History lists the staff member's uploads, newest first.
func (s *StaffService) History(ctx context.Context, staffID string) ([]domain.HistoryItem, error) {
	list, err := s.datasets.ListByStaff(ctx, staffID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	out := make([]domain.HistoryItem, 0, len(list))
	for _, ds := range list {
		out = append(out, domain.HistoryItem{
			ID:         ds.ID,
			Filename:   ds.Filename,
			UploadDate: ds.UploadDate,
			Status:     ds.Status,
		})
	}
	return out, nil
}

// owned loads a dataset, hiding other staff members' uploads behind not found.
func (s *StaffService) owned(ctx context.Context, staffID string, uploadID int) (*repository.Dataset, error) {
	ds, err := s.datasets.Get(ctx, uploadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, util.NewNotFound("upload", map[string]any{"upload_id": uploadID})
		}
		return nil, util.NewInternalError(err)
	}
	if ds.StaffID != staffID {
		return nil, util.NewNotFound("upload", map[string]any{"upload_id": uploadID})
	}
	return ds, nil
}

func toRow(columns, rec []string) domain.Row {
	row := make(domain.Row, len(columns))
	for i, col := range columns {
		if i < len(rec) {
			row[col] = rec[i]
		} else {
			row[col] = nil
		}
	}
	return row
}
