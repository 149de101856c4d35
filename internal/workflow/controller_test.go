package workflow

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/pkg/util"
)

type fixedSession domain.SessionState

func (s fixedSession) State() domain.SessionState { return domain.SessionState(s) }

var staff = fixedSession(domain.Authenticated(domain.RoleStaff, "Jo"))

// fakeRemote answers from the files it receives. A non-nil gate blocks uploads of
// the named file until the gate is closed.
type fakeRemote struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	started   chan string
	uploadErr error
	predErr   error
	exportErr error

	uploads  atomic.Int32
	predicts atomic.Int32
	exports  atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{gates: map[string]chan struct{}{}, started: make(chan string, 8)}
}

func (f *fakeRemote) gate(name string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[name] = g
	return g
}

func (f *fakeRemote) Upload(ctx context.Context, filename string, content io.Reader) (dto.UploadResponse, error) {
	f.uploads.Add(1)
	f.mu.Lock()
	g := f.gates[filename]
	f.mu.Unlock()
	f.started <- filename
	if g != nil {
		<-g
	}
	if f.uploadErr != nil {
		return dto.UploadResponse{}, f.uploadErr
	}
	body, _ := io.ReadAll(content)
	id := len(body)
	return dto.UploadResponse{
		UploadID: id,
		Columns:  []string{"file"},
		Preview:  []domain.Row{{"file": filename}},
		Filename: filename,
	}, nil
}

func (f *fakeRemote) Predict(ctx context.Context, uploadID int) (dto.PredictResponse, error) {
	f.predicts.Add(1)
	if f.predErr != nil {
		return dto.PredictResponse{}, f.predErr
	}
	return dto.PredictResponse{
		Results: []domain.Row{{"customer_id": "1", "risk_level": "high"}},
		Summary: domain.PredictionSummary{TotalCustomers: 1, HighRiskCount: 1},
	}, nil
}

func (f *fakeRemote) Export(ctx context.Context, uploadID int) ([]byte, error) {
	f.exports.Add(1)
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return []byte("customer_id,churn_probability\n1,0.9\n"), nil
}

func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)
	assert.Equal(t, domain.JobIdle, c.Job().Status)

	job, err := c.Select(File{Name: "a.csv", Content: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, domain.JobSelected, job.Status)

	job, err = c.Upload(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobUploaded, job.Status)
	require.NotNil(t, job.UploadID)
	assert.Equal(t, 3, *job.UploadID)
	assert.Equal(t, []string{"file"}, job.Columns)
	assert.Len(t, job.PreviewRows, 1)

	job, err = c.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPredicted, job.Status)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 1, job.Summary.HighRiskCount)

	data, name, err := c.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prediction_results_3.csv", name)
	assert.Contains(t, string(data), "churn_probability")
	assert.Equal(t, domain.JobPredicted, c.Job().Status)
}

func TestSelectWhileUploadingDropsStaleResponse(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	gateA := remote.gate("a.csv")
	c := NewController(remote, staff, nil, nil)

	_, err := c.Select(File{Name: "a.csv", Content: []byte("aaaaaaa")})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(ctx)
		done <- err
	}()
	assert.Equal(t, "a.csv", <-remote.started)
	assert.Equal(t, domain.JobUploading, c.Job().Status)

	_, err = c.Select(File{Name: "b.csv", Content: []byte("bb")})
	require.NoError(t, err)
	job, err := c.Upload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b.csv", <-remote.started)

	close(gateA)
	staleErr := <-done
	assert.True(t, util.Is(staleErr, util.CodeInvalidState))

	job = c.Job()
	assert.Equal(t, "b.csv", job.Filename)
	assert.Equal(t, domain.JobUploaded, job.Status)
	require.NotNil(t, job.UploadID)
	assert.Equal(t, 2, *job.UploadID)
	assert.Equal(t, []domain.Row{{"file": "b.csv"}}, job.PreviewRows)
}

func TestSecondUploadWhileInFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	gate := remote.gate("a.csv")
	c := NewController(remote, staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("a")})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Upload(ctx)
	}()
	<-remote.started

	_, err = c.Upload(ctx)
	assert.True(t, util.Is(err, util.CodeRequestInFlight))
	_, err = c.Predict(ctx)
	assert.True(t, util.Is(err, util.CodeRequestInFlight))

	close(gate)
	<-done
	assert.Equal(t, int32(1), remote.uploads.Load())
	assert.Equal(t, domain.JobUploaded, c.Job().Status)
}

func TestPredictWithoutUploadMakesNoCall(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)

	_, err := c.Predict(ctx)
	assert.True(t, util.Is(err, util.CodeInvalidState))
	assert.Equal(t, domain.JobIdle, c.Job().Status)

	_, err = c.Select(File{Name: "a.csv", Content: []byte("a")})
	require.NoError(t, err)
	job, err := c.Predict(ctx)
	assert.True(t, util.Is(err, util.CodeInvalidState))
	assert.Equal(t, domain.JobSelected, job.Status)

	remote.uploadErr = util.NewNetworkError("File must be a CSV.", 400, nil)
	job, err = c.Upload(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)

	job, err = c.Predict(ctx)
	assert.True(t, util.Is(err, util.CodeInvalidState))
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Zero(t, remote.predicts.Load())
}

func TestUploadFailureKeepsServerMessageAndRetries(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("abcd")})
	require.NoError(t, err)

	remote.uploadErr = util.NewNetworkError("File must be a CSV.", 400, nil)
	job, err := c.Upload(ctx)
	assert.True(t, util.Is(err, util.CodeNetwork))
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, "File must be a CSV.", job.ErrorMessage)
	assert.Nil(t, job.UploadID)

	remote.uploadErr = nil
	job, err = c.Upload(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobUploaded, job.Status)
	assert.Empty(t, job.ErrorMessage)
}

func TestUnrecognizedFailureUsesFallback(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("a")})
	require.NoError(t, err)

	remote.uploadErr = io.ErrUnexpectedEOF
	job, _ := c.Upload(ctx)
	assert.Equal(t, msgUploadFailed, job.ErrorMessage)
}

func TestPredictFailureRetriesFromUploaded(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("abcde")})
	require.NoError(t, err)
	_, err = c.Upload(ctx)
	require.NoError(t, err)

	remote.predErr = util.NewNetworkError("Model unavailable", 500, nil)
	job, err := c.Predict(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, domain.JobUploaded, job.LastGood)
	require.NotNil(t, job.UploadID)
	assert.Equal(t, 5, *job.UploadID)

	_, err = c.Upload(ctx)
	assert.True(t, util.Is(err, util.CodeInvalidState), "retry resumes from the last good stage, not from the start")

	_, _, err = c.Export(ctx)
	require.NoError(t, err, "an upload id is enough to export")

	remote.predErr = nil
	job, err = c.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPredicted, job.Status)
}

func TestRepeatedExportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("ab")})
	require.NoError(t, err)
	_, err = c.Upload(ctx)
	require.NoError(t, err)
	before := c.Job()

	for i := 0; i < 3; i++ {
		data, name, err := c.Export(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Equal(t, "prediction_results_2.csv", name)
	}
	assert.Equal(t, before, c.Job())
	assert.Equal(t, int32(3), remote.exports.Load())
}

func TestExportFailureKeepsJob(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := NewController(remote, staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("ab")})
	require.NoError(t, err)
	_, err = c.Upload(ctx)
	require.NoError(t, err)
	_, err = c.Predict(ctx)
	require.NoError(t, err)
	before := c.Job()

	remote.exportErr = util.NewNetworkError("Upload not found", 404, nil)
	_, _, err = c.Export(ctx)
	assert.True(t, util.Is(err, util.CodeNetwork))
	assert.Equal(t, before, c.Job())
}

func TestExportRequiresUpload(t *testing.T) {
	c := NewController(newFakeRemote(), staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv"})
	require.NoError(t, err)
	_, _, err = c.Export(context.Background())
	assert.True(t, util.Is(err, util.CodeInvalidState))
}

func TestStagesRequireStaffSession(t *testing.T) {
	ctx := context.Background()
	for _, s := range []fixedSession{
		fixedSession(domain.Anonymous()),
		fixedSession(domain.Authenticated(domain.RoleClient, "Acme")),
	} {
		remote := newFakeRemote()
		c := NewController(remote, s, nil, nil)
		_, err := c.Select(File{Name: "a.csv", Content: []byte("a")})
		require.NoError(t, err)
		job, err := c.Upload(ctx)
		assert.True(t, util.Is(err, util.CodeAuthRequired))
		assert.Equal(t, domain.JobSelected, job.Status)
		assert.Zero(t, remote.uploads.Load())
	}
}

func TestSelectRequiresName(t *testing.T) {
	c := NewController(newFakeRemote(), staff, nil, nil)
	_, err := c.Select(File{})
	assert.True(t, util.Is(err, util.CodeValidation))
	assert.Equal(t, domain.JobIdle, c.Job().Status)
}

func TestLogoutResetsJob(t *testing.T) {
	c := NewController(newFakeRemote(), staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("a")})
	require.NoError(t, err)
	_, err = c.Upload(context.Background())
	require.NoError(t, err)

	c.FollowSession(domain.Authenticated(domain.RoleStaff, "Jo"))
	assert.Equal(t, domain.JobUploaded, c.Job().Status)
	c.FollowSession(domain.Anonymous())
	job := c.Job()
	assert.Equal(t, domain.JobIdle, job.Status)
	assert.Nil(t, job.UploadID)
}

func TestJobIsACopy(t *testing.T) {
	c := NewController(newFakeRemote(), staff, nil, nil)
	_, err := c.Select(File{Name: "a.csv", Content: []byte("ab")})
	require.NoError(t, err)
	_, err = c.Upload(context.Background())
	require.NoError(t, err)

	job := c.Job()
	*job.UploadID = 99
	job.Columns[0] = "mutated"
	assert.Equal(t, 2, *c.Job().UploadID)
	assert.Equal(t, "file", c.Job().Columns[0])
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "prediction_results_17.csv", ExportFilename(17))
}
