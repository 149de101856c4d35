package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/credstore"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/session"
	"github.com/spec-kit/telepredict/internal/workflow"
	"github.com/spec-kit/telepredict/pkg/util"
)

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "logout", "whoami", "watch", "register", "profile", "add-staff", "feedback", "history", "export", "predict"} {
		assert.True(t, names[want], want)
	}
}

func TestPrintState(t *testing.T) {
	var buf bytes.Buffer
	printState(&buf, domain.Anonymous())
	printState(&buf, domain.Authenticated(domain.RoleStaff, "Jo"))
	assert.Equal(t, "Not logged in.\nLogged in as Jo (staff).\n", buf.String())
}

func TestPrintProfileShowsUnlimitedPlan(t *testing.T) {
	var buf bytes.Buffer
	printProfile(&buf, dto.ProfileResponse{
		ClientInfo:    dto.ClientInfo{CompanyID: "7", CompanyName: "Seven"},
		Subscriptions: []dto.SubscriptionResponse{{PlanType: "partner", CurrentStaffCount: 3}},
	})
	assert.Contains(t, buf.String(), "Seven (7)")
	assert.Contains(t, buf.String(), "3 of unlimited seats")
}

func TestSaveWritesIntoDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	var buf bytes.Buffer
	require.NoError(t, save(&buf, dir, "prediction_results_4.csv", []byte("a,b\n")))

	data, err := os.ReadFile(filepath.Join(dir, "prediction_results_4.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
	assert.Contains(t, buf.String(), "prediction_results_4.csv")
	assert.Equal(t, "x", pick("x", "y"))
	assert.Equal(t, "y", pick("", "y"))
}

// stubRemote answers the workflow calls; beforeReturn runs inside Upload.
type stubRemote struct {
	beforeReturn func()
	predicts     atomic.Int32
}

func (s *stubRemote) Upload(context.Context, string, io.Reader) (dto.UploadResponse, error) {
	if s.beforeReturn != nil {
		s.beforeReturn()
	}
	return dto.UploadResponse{UploadID: 11, Columns: []string{"tenure"}, TotalRows: 2}, nil
}

func (s *stubRemote) Predict(context.Context, int) (dto.PredictResponse, error) {
	s.predicts.Add(1)
	return dto.PredictResponse{Summary: domain.PredictionSummary{TotalCustomers: 2, HighRiskCount: 1, LowRiskCount: 1}}, nil
}

func (s *stubRemote) Export(context.Context, int) ([]byte, error) {
	return []byte("tenure,risk_level\n"), nil
}

func staffSessions(t *testing.T) (own, other *session.Manager) {
	t.Helper()
	ctx := context.Background()
	origin := credstore.NewMemoryOrigin()
	ownStore, otherStore := origin.Open(), origin.Open()
	t.Cleanup(func() {
		_ = ownStore.Close()
		_ = otherStore.Close()
	})

	token, _, err := auth.NewTokenManager("cli-secret", 5).GenerateToken(auth.Identity{Role: domain.RoleStaff, SubjectID: "s1", Name: "Jo"})
	require.NoError(t, err)
	own = session.NewManager(ownStore, nil, nil)
	require.NoError(t, own.Login(ctx, token, domain.RoleStaff, "s1", "Jo"))
	other = session.NewManager(otherStore, nil, nil)
	_, err = other.Init(ctx)
	require.NoError(t, err)
	return own, other
}

func TestPredictRunExportsResults(t *testing.T) {
	own, _ := staffSessions(t)
	remote := &stubRemote{}
	dir := t.TempDir()
	var out bytes.Buffer

	run := predictRun{session: own, remote: remote, export: true, dir: dir}
	require.NoError(t, run.execute(context.Background(), &out, workflow.File{Name: "customers.csv", Content: []byte("tenure\n1\n2\n")}))

	assert.Contains(t, out.String(), "Uploaded customers.csv as #11")
	assert.Contains(t, out.String(), "Customers: 2  high risk: 1")
	data, err := os.ReadFile(filepath.Join(dir, "prediction_results_11.csv"))
	require.NoError(t, err)
	assert.Equal(t, "tenure,risk_level\n", string(data))
}

func TestPredictRunStopsWhenAnotherContextLogsOut(t *testing.T) {
	own, other := staffSessions(t)
	ctx := context.Background()
	remote := &stubRemote{}
	remote.beforeReturn = func() {
		require.NoError(t, other.Logout(ctx))
		require.Eventually(t, func() bool {
			return !own.State().IsAuthenticated
		}, 5*time.Second, 10*time.Millisecond)
	}

	var out bytes.Buffer
	run := predictRun{session: own, remote: remote, dir: t.TempDir()}
	err := run.execute(ctx, &out, workflow.File{Name: "customers.csv", Content: []byte("tenure\n1\n")})
	require.Error(t, err)
	assert.True(t, util.Is(err, util.CodeAuthRequired) || util.Is(err, util.CodeInvalidState), util.CodeOf(err))
	assert.Zero(t, remote.predicts.Load())
	assert.NotContains(t, out.String(), "Customers:")
}
