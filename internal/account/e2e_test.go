package account_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/telepredict/internal/account"
	httptransport "github.com/spec-kit/telepredict/internal/api/http"
	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/apiclient"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/credstore"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/session"
	"github.com/spec-kit/telepredict/internal/workflow"
	"github.com/spec-kit/telepredict/pkg/util"
)

const telcoCSV = `SeniorCitizen,Partner,Dependents,tenure,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges
0,Yes,No,1,No,Yes,No,No,Month-to-month,Yes,Electronic check,29.85,29.85
0,No,No,34,Yes,No,Yes,No,One year,No,Mailed check,56.95,1889.5
1,No,No,2,No,No,No,No,Month-to-month,Yes,Electronic check,70.7,151.65
`

// tab is one client context: a session over a shared origin and a remote client.
type tab struct {
	session *session.Manager
	remote  *apiclient.Client
}

func openTab(t *testing.T, origin *credstore.MemoryOrigin, baseURL string) tab {
	t.Helper()
	store := origin.Open()
	t.Cleanup(func() { _ = store.Close() })
	sess := session.NewManager(store, nil, nil)
	_, err := sess.Init(context.Background())
	require.NoError(t, err)
	return tab{
		session: sess,
		remote:  apiclient.New(config.APIConfig{BaseURL: baseURL, RequestTimeoutSeconds: 10}, sess, nil),
	}
}

func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Config{
		App:  config.AppConfig{Name: "telepredict-test"},
		Auth: config.AuthConfig{JWTSecret: "e2e-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
	}
	server := httptransport.NewServer(cfg, nil, nil, nil)
	ts := httptest.NewServer(adaptor.FiberApp(server.App))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestOrganizationAndStaffJourney(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t)
	origin := credstore.NewMemoryOrigin()

	org := openTab(t, origin, baseURL)
	orgAuth := account.NewAuthFlow(org.remote, org.session, nil)
	require.NoError(t, orgAuth.Register(ctx, account.RegisterInput{
		CompanyID:   "1001",
		CompanyName: "Acme Telecom",
		ContactNo:   "0123456789",
		Email:       "ops@acme.test",
		Password:    "s3cret-pass",
		Password2:   "s3cret-pass",
		PlanType:    domain.PlanBasic,
	}))

	state, err := orgAuth.LoginClient(ctx, "1001", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.Authenticated(domain.RoleClient, "Acme Telecom"), state)

	company := account.NewCompanyFlow(org.remote, nil)
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		_, err := company.AddStaff(ctx, dto.AddStaffRequest{
			StaffID: id, Name: "Staff " + id, Email: id + "@acme.test", Password: "pw-" + id, Password2: "pw-" + id,
		})
		require.NoError(t, err, id)
	}
	_, err = company.AddStaff(ctx, dto.AddStaffRequest{StaffID: "s6", Name: "Six", Email: "s6@acme.test", Password: "pw", Password2: "pw"})
	require.True(t, util.Is(err, util.CodeQuotaExceeded))

	_, err = company.SubmitFeedback(ctx, 4, "smooth")
	require.NoError(t, err)
	profile, err := company.Profile(ctx)
	require.NoError(t, err)
	assert.Len(t, profile.StaffMembers, 5)
	assert.Len(t, profile.FeedbackHistory, 1)

	require.NoError(t, orgAuth.Logout(ctx))

	desk := openTab(t, origin, baseURL)
	deskAuth := account.NewAuthFlow(desk.remote, desk.session, nil)
	state, err = deskAuth.LoginStaff(ctx, "s1", "pw-s1")
	require.NoError(t, err)
	assert.Equal(t, domain.Authenticated(domain.RoleStaff, "Staff s1"), state)

	ctl := workflow.NewController(desk.remote, desk.session, nil, nil)
	_, err = ctl.Select(workflow.File{Name: "customers.csv", Content: []byte(telcoCSV)})
	require.NoError(t, err)
	job, err := ctl.Upload(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.JobUploaded, job.Status)
	assert.Equal(t, 3, job.TotalRows)

	job, err = ctl.Predict(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.JobPredicted, job.Status)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 3, job.Summary.TotalCustomers)

	data, name, err := ctl.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.ExportFilename(*job.UploadID), name)
	assert.Contains(t, strings.SplitN(string(data), "\n", 2)[0], "risk_level")

	staff := account.NewStaffFlow(desk.remote)
	history, err := staff.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "predicted", history[0].Status)

	again, _, err := staff.ExportUpload(ctx, history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestLogoutInOneTabEndsTheOther(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t)
	origin := credstore.NewMemoryOrigin()

	first := openTab(t, origin, baseURL)
	second := openTab(t, origin, baseURL)
	require.NoError(t, second.session.StartSync(ctx))
	t.Cleanup(second.session.Teardown)

	firstAuth := account.NewAuthFlow(first.remote, first.session, nil)
	require.NoError(t, firstAuth.Register(ctx, account.RegisterInput{
		CompanyID: "7", CompanyName: "Seven", Email: "x@seven.test",
		Password: "pw", Password2: "pw", PlanType: domain.PlanPartner,
	}))
	_, err := firstAuth.LoginClient(ctx, "7", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return second.session.State() == domain.Authenticated(domain.RoleClient, "Seven")
	}, 5*time.Second, 10*time.Millisecond)
	_, err = account.NewCompanyFlow(second.remote, nil).Profile(ctx)
	require.NoError(t, err)

	require.NoError(t, firstAuth.Logout(ctx))
	require.Eventually(t, func() bool {
		return !second.session.State().IsAuthenticated
	}, 5*time.Second, 10*time.Millisecond)

	_, err = account.NewCompanyFlow(second.remote, nil).Profile(ctx)
	assert.True(t, util.Is(err, util.CodeAuthRequired))
}
