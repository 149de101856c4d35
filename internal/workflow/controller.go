// Package workflow drives one upload job through select, upload, predict and export.
package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/pkg/util"
)

// Fallback messages for failures that carry no server message.
const (
	msgUploadFailed  = "Upload failed. Please try again."
	msgPredictFailed = "Prediction failed. Please try again."
	msgStaffRequired = "Please log in as staff to run predictions."
)

// Remote is the part of the service the workflow calls.
type Remote interface {
	Upload(ctx context.Context, filename string, content io.Reader) (dto.UploadResponse, error)
	Predict(ctx context.Context, uploadID int) (dto.PredictResponse, error)
	Export(ctx context.Context, uploadID int) ([]byte, error)
}

// Session reports who is logged in.
type Session interface {
	State() domain.SessionState
}

// File is a selected dataset.
type File struct {
	Name    string
	Content []byte
}

// ExportFilename is the download name of an export.
func ExportFilename(uploadID int) string {
	return fmt.Sprintf("prediction_results_%d.csv", uploadID)
}

// Controller owns the current job. All methods are safe for concurrent use; at most
// one request per job is outstanding and a response for a superseded job is dropped.
type Controller struct {
	remote  Remote
	session Session
	logger  *zap.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	job  domain.UploadJob
	file File
	// busy is the ID of the job with an outstanding request, or "".
	busy string
}

// NewController returns a controller with an Idle job.
func NewController(remote Remote, session Session, logger *zap.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		remote:  remote,
		session: session,
		logger:  observability.OrNop(logger).Named("workflow"),
		metrics: metrics,
		job:     domain.UploadJob{Status: domain.JobIdle, LastGood: domain.JobIdle},
	}
}

// Job returns a copy of the current job.
func (c *Controller) Job() domain.UploadJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Clone()
}

// Select starts a new job for file, discarding the previous job and everything
// derived from it. Responses still pending for the previous job will be dropped.
func (c *Controller) Select(file File) (domain.UploadJob, error) {
	if file.Name == "" {
		return c.Job(), util.NewValidationError("Please select a file to upload.", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = File{Name: file.Name, Content: append([]byte(nil), file.Content...)}
	c.job = domain.UploadJob{
		ID:       uuid.NewString(),
		Filename: file.Name,
		LastGood: domain.JobSelected,
	}
	c.transition(domain.JobSelected)
	return c.job.Clone(), nil
}

// Reset returns to Idle, dropping the job. Used when the session ends.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = File{}
	c.job = domain.UploadJob{LastGood: domain.JobIdle}
	c.transition(domain.JobIdle)
}

// FollowSession is a session listener that resets the job on logout.
func (c *Controller) FollowSession(state domain.SessionState) {
	if !state.IsAuthenticated {
		c.Reset()
	}
}

// Upload sends the selected file. Valid from Selected, or from Failed when the
// upload itself failed.
func (c *Controller) Upload(ctx context.Context) (domain.UploadJob, error) {
	c.mu.Lock()
	if err := c.admit(); err != nil {
		defer c.mu.Unlock()
		return c.job.Clone(), err
	}
	if !c.at(domain.JobSelected) {
		defer c.mu.Unlock()
		return c.job.Clone(), util.NewInvalidState("Select a file before uploading.")
	}
	jobID, file := c.job.ID, c.file
	c.busy = jobID
	c.transition(domain.JobUploading)
	c.mu.Unlock()

	resp, err := c.remote.Upload(ctx, file.Name, bytes.NewReader(file.Content))

	c.mu.Lock()
	defer c.mu.Unlock()
	if stale := c.settle(jobID, "upload"); stale != nil {
		return c.job.Clone(), stale
	}
	if err != nil {
		return c.fail(err, domain.JobSelected, msgUploadFailed)
	}

	id := resp.UploadID
	c.job.UploadID = &id
	c.job.Columns = resp.Columns
	c.job.PreviewRows = resp.Preview
	c.job.TotalRows = resp.TotalRows
	if c.job.TotalRows == 0 {
		c.job.TotalRows = len(resp.Preview)
	}
	c.job.ErrorMessage = ""
	c.job.LastGood = domain.JobUploaded
	c.transition(domain.JobUploaded)
	c.logger.Info("upload complete", zap.String("job_id", jobID), zap.Int("upload_id", id))
	return c.job.Clone(), nil
}

// Predict runs the model on the uploaded dataset. It fails without a network call
// when no upload has succeeded.
func (c *Controller) Predict(ctx context.Context) (domain.UploadJob, error) {
	c.mu.Lock()
	if err := c.admit(); err != nil {
		defer c.mu.Unlock()
		return c.job.Clone(), err
	}
	if c.job.UploadID == nil {
		defer c.mu.Unlock()
		return c.job.Clone(), util.NewInvalidState("Upload a file before running predictions.")
	}
	if !c.at(domain.JobUploaded) {
		defer c.mu.Unlock()
		return c.job.Clone(), util.NewInvalidState(fmt.Sprintf("Cannot predict while %s.", c.job.Status))
	}
	jobID, uploadID := c.job.ID, *c.job.UploadID
	c.busy = jobID
	c.transition(domain.JobPredicting)
	c.mu.Unlock()

	resp, err := c.remote.Predict(ctx, uploadID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if stale := c.settle(jobID, "predict"); stale != nil {
		return c.job.Clone(), stale
	}
	if err != nil {
		return c.fail(err, domain.JobUploaded, msgPredictFailed)
	}

	summary := resp.Summary
	c.job.Summary = &summary
	c.job.Results = resp.Results
	c.job.ErrorMessage = ""
	c.job.LastGood = domain.JobPredicted
	c.transition(domain.JobPredicted)
	c.logger.Info("prediction complete",
		zap.String("job_id", jobID),
		zap.Int("upload_id", uploadID),
		zap.Int("total_customers", summary.TotalCustomers),
	)
	return c.job.Clone(), nil
}

// Export downloads the processed dataset. It is repeatable and leaves the job as it
// was, on success and on failure.
func (c *Controller) Export(ctx context.Context) ([]byte, string, error) {
	c.mu.Lock()
	if err := c.admit(); err != nil {
		c.mu.Unlock()
		return nil, "", err
	}
	if c.job.UploadID == nil {
		c.mu.Unlock()
		return nil, "", util.NewInvalidState("Upload a file before exporting.")
	}
	if !c.at(domain.JobUploaded) && !c.at(domain.JobPredicted) {
		status := c.job.Status
		c.mu.Unlock()
		return nil, "", util.NewInvalidState(fmt.Sprintf("Cannot export while %s.", status))
	}
	jobID, uploadID, previous := c.job.ID, *c.job.UploadID, c.job.Status
	c.busy = jobID
	c.transition(domain.JobExporting)
	c.mu.Unlock()

	data, err := c.remote.Export(ctx, uploadID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if stale := c.settle(jobID, "export"); stale != nil {
		return nil, "", stale
	}
	c.transition(previous)
	if err != nil {
		c.logger.Warn("export failed", zap.String("job_id", jobID), zap.Int("upload_id", uploadID), zap.Error(err))
		return nil, "", util.ToDomainError(err)
	}
	return data, ExportFilename(uploadID), nil
}

// admit rejects a trigger while a request is outstanding or without a staff session.
// Callers hold c.mu.
func (c *Controller) admit() error {
	if c.busy != "" && c.busy == c.job.ID {
		return util.NewInFlight("A request for this file is already in progress.")
	}
	if c.session == nil {
		return util.NewAuthRequired(msgStaffRequired)
	}
	state := c.session.State()
	if !state.IsAuthenticated || state.Role != domain.RoleStaff {
		return util.NewAuthRequired(msgStaffRequired)
	}
	return nil
}

// at reports whether the job is in status, directly or as a retry from Failed.
func (c *Controller) at(status domain.JobStatus) bool {
	if c.job.Status == status {
		return true
	}
	return c.job.Status == domain.JobFailed && c.job.LastGood == status
}

// settle releases the in-flight slot of jobID and reports whether its response
// is stale. Callers hold c.mu.
func (c *Controller) settle(jobID, stage string) error {
	if c.busy == jobID {
		c.busy = ""
	}
	if c.job.ID == jobID {
		return nil
	}
	c.metrics.RecordStaleDrop()
	c.logger.Info("dropped stale response",
		zap.String("stage", stage),
		zap.String("job_id", jobID),
		zap.String("current_job_id", c.job.ID),
	)
	return util.NewInvalidState("The selected file changed before the " + stage + " finished.")
}

func (c *Controller) fail(err error, lastGood domain.JobStatus, fallback string) (domain.UploadJob, error) {
	de := util.ToDomainError(err)
	msg := de.Message
	if msg == "" || de.Code == util.CodeInternal {
		msg = fallback
	}
	c.job.ErrorMessage = msg
	c.job.LastGood = lastGood
	c.transition(domain.JobFailed)
	c.logger.Warn("stage failed",
		zap.String("job_id", c.job.ID),
		zap.String("last_good", string(lastGood)),
		zap.String("code", de.Code),
		zap.String("error", msg),
	)
	return c.job.Clone(), de
}

func (c *Controller) transition(status domain.JobStatus) {
	if c.job.Status == status {
		return
	}
	c.job.Status = status
	c.metrics.RecordTransition(string(status))
	c.logger.Debug("transition", zap.String("job_id", c.job.ID), zap.String("status", string(status)))
}
