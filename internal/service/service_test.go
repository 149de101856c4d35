package service

import (
	"context"
	"encoding/csv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/events"
	"github.com/spec-kit/telepredict/internal/repository"
	"github.com/spec-kit/telepredict/internal/scoring"
	"github.com/spec-kit/telepredict/pkg/util"
)

const telcoCSV = `SeniorCitizen,Partner,Dependents,tenure,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges
0,Yes,No,1,No,Yes,No,No,Month-to-month,Yes,Electronic check,29.85,29.85
0,No,No,34,Yes,No,Yes,No,One year,No,Mailed check,56.95,1889.5
1,No,No,2,No,No,No,No,Month-to-month,Yes,Electronic check,70.7,151.65
`

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	auth    *AuthService
	company *CompanyService
	staff   *StaffService
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}}
	clients := repository.NewClientRepository()
	staff := repository.NewStaffRepository()
	subs := repository.NewSubscriptionRepository()
	feedback := repository.NewFeedbackRepository()
	dispatcher := events.NewInMemoryDispatcher()

	rec := &recorder{}
	for _, et := range []events.EventType{
		events.EventClientRegistered, events.EventStaffAdded, events.EventFeedbackReceived,
		events.EventDatasetUploaded, events.EventDatasetPredicted, events.EventDatasetExported,
	} {
		dispatcher.Subscribe(et, rec.handle)
	}

	return &fixture{
		auth: NewAuthService(cfg, AuthDependencies{
			ClientRepo: clients, StaffRepo: staff, SubscriptionRepo: subs, Dispatcher: dispatcher,
		}),
		company: NewCompanyService(cfg, CompanyDependencies{
			ClientRepo: clients, StaffRepo: staff, SubscriptionRepo: subs, FeedbackRepo: feedback, Dispatcher: dispatcher,
		}),
		staff:  NewStaffService(StaffDependencies{DatasetRepo: repository.NewDatasetRepository(), Dispatcher: dispatcher}),
		events: rec,
	}
}

func registration(plan domain.PlanType) RegisterClientInput {
	return RegisterClientInput{
		CompanyID:   "1001",
		CompanyName: "Acme Telecom",
		ContactNo:   "0123456789",
		Email:       "ops@acme.test",
		Password:    "s3cret-pass",
		Password2:   "s3cret-pass",
		PlanType:    plan,
	}
}

func TestRegisterAndLoginClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.auth.RegisterClient(ctx, registration(domain.PlanBasic))
	require.NoError(t, err)
	assert.Equal(t, "1001", client.CompanyID)

	token, err := f.auth.LoginClient(ctx, "1001", "s3cret-pass")
	require.NoError(t, err)
	claims := auth.Decode(token)
	require.NotNil(t, claims)
	assert.Equal(t, domain.RoleClient, claims.UserType)
	assert.Equal(t, "Acme Telecom", claims.CompanyName)

	_, err = f.auth.LoginClient(ctx, "1001", "wrong")
	assert.True(t, util.Is(err, util.CodeUnauthorized))
	_, err = f.auth.LoginClient(ctx, "9999", "s3cret-pass")
	assert.True(t, util.Is(err, util.CodeUnauthorized))

	assert.Equal(t, []events.EventType{events.EventClientRegistered}, f.events.types())
}

func TestRegisterClientReportsFieldErrors(t *testing.T) {
	f := newFixture(t)
	in := registration("gold")
	in.CompanyID = "abc"
	in.Email = "not-an-email"
	in.Password2 = "different"

	_, err := f.auth.RegisterClient(context.Background(), in)
	require.Error(t, err)
	fields := util.ToDomainError(err).FieldErrors()
	assert.Contains(t, fields, "company_id")
	assert.Contains(t, fields, "company_email")
	assert.Contains(t, fields, "plan_type")
	assert.Equal(t, []string{msgPasswordMismatch}, fields["password"])
}

func TestRegisterClientRejectsDuplicateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.RegisterClient(ctx, registration(domain.PlanBasic))
	require.NoError(t, err)

	_, err = f.auth.RegisterClient(ctx, registration(domain.PlanBasic))
	require.Error(t, err)
	assert.Contains(t, util.ToDomainError(err).FieldErrors(), "company_id")
}

func TestLoginStaffBlankFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.LoginStaff(context.Background(), "", "")
	require.True(t, util.Is(err, util.CodeValidation))
	fields := util.ToDomainError(err).FieldErrors()
	assert.Equal(t, []string{msgBlank}, fields["staff_id"])
	assert.Equal(t, []string{msgBlank}, fields["password"])
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestNewSubscriptionPricing(t *testing.T) {
	start := mustDate(t, "2024-01-15")
	sub := NewSubscription(domain.PlanStandard, start)
	require.NotNil(t, sub.MaxStaffAllowed)
	assert.Equal(t, 20, *sub.MaxStaffAllowed)
	assert.Equal(t, 250.0, sub.MonthlyCharges)
	assert.Equal(t, 1000.0, sub.TotalCharges)
	assert.Equal(t, "2024-05-14", sub.EndDate.Format("2006-01-02"))
	assert.True(t, sub.Active)

	assert.Nil(t, NewSubscription(domain.PlanPartner, start).MaxStaffAllowed)
}

func staffInput(id string) AddStaffInput {
	return AddStaffInput{StaffID: id, Name: "Staff " + id, Email: id + "@acme.test", Password: "pw-" + id, Password2: "pw-" + id}
}

func TestAddStaffEnforcesSeatLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.RegisterClient(ctx, registration(domain.PlanBasic))
	require.NoError(t, err)

	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		_, err := f.company.AddStaff(ctx, "1001", staffInput(id))
		require.NoError(t, err, id)
	}
	_, err = f.company.AddStaff(ctx, "1001", staffInput("s6"))
	require.True(t, util.Is(err, util.CodeForbidden))
	assert.Equal(t, "Cannot add more staff. Your basic plan allows maximum 5 staff members.", util.ToDomainError(err).Message)

	profile, err := f.company.Profile(ctx, "1001")
	require.NoError(t, err)
	assert.Len(t, profile.Staff, 5)
	require.Len(t, profile.Subscriptions, 1)
	assert.Equal(t, 5, profile.Subscriptions[0].CurrentStaffCount)
}

func TestAddStaffDuplicateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.RegisterClient(ctx, registration(domain.PlanPartner))
	require.NoError(t, err)

	_, err = f.company.AddStaff(ctx, "1001", staffInput("s1"))
	require.NoError(t, err)
	_, err = f.company.AddStaff(ctx, "1001", staffInput("s1"))
	require.Error(t, err)
	assert.Equal(t, []string{msgStaffIDTaken}, util.ToDomainError(err).FieldErrors()["staff_id"])
}

func TestAddedStaffCanLogIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.RegisterClient(ctx, registration(domain.PlanPartner))
	require.NoError(t, err)
	_, err = f.company.AddStaff(ctx, "1001", staffInput("s1"))
	require.NoError(t, err)

	token, err := f.auth.LoginStaff(ctx, "s1", "pw-s1")
	require.NoError(t, err)
	claims := auth.Decode(token)
	require.NotNil(t, claims)
	assert.Equal(t, domain.RoleStaff, claims.UserType)
	assert.Equal(t, "Staff s1", claims.Name)
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.RegisterClient(ctx, registration(domain.PlanBasic))
	require.NoError(t, err)

	for _, score := range []int{0, 6} {
		_, err := f.company.SubmitFeedback(ctx, "1001", score, "")
		assert.True(t, util.Is(err, util.CodeValidation), score)
	}
	_, err = f.company.SubmitFeedback(ctx, "1001", 3, strings.Repeat("x", maxComplaintsLength+1))
	assert.True(t, util.Is(err, util.CodeValidation))

	fb, err := f.company.SubmitFeedback(ctx, "1001", 4, "slow exports")
	require.NoError(t, err)
	assert.Equal(t, 4, fb.Score)

	profile, err := f.company.Profile(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, profile.Feedback, 1)
	assert.Equal(t, "slow exports", profile.Feedback[0].Complaints)
}

func TestProfileUnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.company.Profile(context.Background(), "nope")
	assert.True(t, util.Is(err, util.CodeNotFound))
}

func TestUploadRejectsNonCSV(t *testing.T) {
	f := newFixture(t)
	_, err := f.staff.Upload(context.Background(), "s1", "data.xlsx", strings.NewReader(telcoCSV))
	require.True(t, util.Is(err, util.CodeValidation))
	assert.Equal(t, msgNotCSV, util.ToDomainError(err).Message)

	_, err = f.staff.Upload(context.Background(), "s1", "empty.csv", strings.NewReader(""))
	assert.True(t, util.Is(err, util.CodeValidation))
}

func TestUploadPredictExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ds, err := f.staff.Upload(ctx, "s1", "customers.csv", strings.NewReader(telcoCSV))
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 3)
	preview := Preview(ds, PreviewRows)
	require.Len(t, preview, 3)
	assert.Equal(t, "Month-to-month", preview[0]["Contract"])

	res, err := f.staff.Predict(ctx, "s1", ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.TotalCustomers)
	assert.Equal(t, 3, res.Summary.HighRiskCount+res.Summary.MediumRiskCount+res.Summary.LowRiskCount)
	require.Len(t, res.Results, 3)
	p, ok := res.Results[0][ColumnProbability].(float64)
	require.True(t, ok)
	assert.Equal(t, scoring.Level(p), res.Results[0][ColumnRiskLevel])

	data, err := f.staff.Export(ctx, "s1", ds.ID)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	header := records[0]
	assert.Equal(t, ColumnProbability, header[len(header)-2])
	assert.Equal(t, ColumnRiskLevel, header[len(header)-1])

	history, err := f.staff.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, repository.DatasetPredicted, history[0].Status)
	assert.Equal(t, "customers.csv", history[0].Filename)

	assert.Equal(t, []events.EventType{
		events.EventDatasetUploaded, events.EventDatasetPredicted, events.EventDatasetExported,
	}, f.events.types())
}

func TestExportBeforePredictHasNoResultColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ds, err := f.staff.Upload(ctx, "s1", "customers.csv", strings.NewReader(telcoCSV))
	require.NoError(t, err)

	data, err := f.staff.Export(ctx, "s1", ds.ID)
	require.NoError(t, err)
	first := strings.SplitN(string(data), "\n", 2)[0]
	assert.NotContains(t, first, ColumnProbability)
}

func TestPredictMissingColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ds, err := f.staff.Upload(ctx, "s1", "short.csv", strings.NewReader("tenure,Contract\n3,One year\n"))
	require.NoError(t, err)

	_, err = f.staff.Predict(ctx, "s1", ds.ID)
	require.True(t, util.Is(err, util.CodeValidation))
	assert.Contains(t, util.ToDomainError(err).Message, "Missing required columns: ")
}

func TestDatasetsAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ds, err := f.staff.Upload(ctx, "s1", "customers.csv", strings.NewReader(telcoCSV))
	require.NoError(t, err)

	_, err = f.staff.Predict(ctx, "s2", ds.ID)
	assert.True(t, util.Is(err, util.CodeNotFound))
	_, err = f.staff.Export(ctx, "s2", ds.ID)
	assert.True(t, util.Is(err, util.CodeNotFound))
	_, err = f.staff.Export(ctx, "s1", 999)
	assert.True(t, util.Is(err, util.CodeNotFound))

	history, err := f.staff.History(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, history)
}
