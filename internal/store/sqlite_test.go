package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadboost/leadboost/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedOrgAndUser creates the tenant rows most tests need.
func seedOrgAndUser(t *testing.T, st *SQLiteStore) (orgID, userID string) {
	t.Helper()
	ctx := context.Background()

	org := &model.Organization{Name: "Acme Corp " + t.Name(), PlanTier: model.PlanFree, MaxLeads: 100}
	require.NoError(t, st.CreateOrganization(ctx, org))

	u := &model.User{
		Email:          t.Name() + "@acme.test",
		HashedPassword: "x",
		OrganizationID: org.ID,
		IsActive:       true,
	}
	require.NoError(t, st.CreateUser(ctx, u))
	return org.ID, u.ID
}

// --- Users ---

func TestSQLite_User_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	u, err := st.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, orgID, u.OrganizationID)
	assert.True(t, u.IsActive)

	u.FirstName = "Jane"
	u.LastName = "Doe"
	require.NoError(t, st.UpdateUser(ctx, u))

	byEmail, err := st.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "Jane", byEmail.FirstName)
}

func TestSQLite_User_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	u, err := st.GetUser(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, u)
}

// --- Organizations ---

func TestSQLite_Organization_GetByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	org := &model.Organization{Name: "Globex", PlanTier: model.PlanPro}
	require.NoError(t, st.CreateOrganization(ctx, org))

	got, err := st.GetOrganizationByName(ctx, "Globex")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, org.ID, got.ID)
	assert.Equal(t, model.PlanPro, got.PlanTier)
}

// --- Subscriptions ---

func TestSQLite_Subscription_UpsertReplacesPlan(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, _ := seedOrgAndUser(t, st)

	now := time.Now().UTC()
	sub := &model.Subscription{
		OrganizationID:     orgID,
		PlanName:           model.PlanFree,
		Status:             model.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, 30),
	}
	require.NoError(t, st.UpsertSubscription(ctx, sub))

	sub.PlanName = model.PlanEnterprise
	require.NoError(t, st.UpsertSubscription(ctx, sub))

	got, err := st.GetSubscription(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.PlanEnterprise, got.PlanName)
	assert.Equal(t, model.SubscriptionActive, got.Status)
}

func TestSQLite_Subscription_MissingIsNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	sub, err := st.GetSubscription(context.Background(), "no-such-org")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

// --- Leads ---

func TestSQLite_Lead_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))
	require.NotEmpty(t, lead.ID)

	year := 2014
	lead.CompanyName = "Acme"
	lead.Industry = "Software"
	lead.Employees = model.Employees51To200
	lead.FoundedYear = &year
	lead.Score = 82.5
	lead.QualificationLabel = model.LabelHotLead
	require.NoError(t, st.UpdateLead(ctx, lead))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, model.Employees51To200, got.Employees)
	require.NotNil(t, got.FoundedYear)
	assert.Equal(t, 2014, *got.FoundedYear)
	assert.Equal(t, model.LabelHotLead, got.QualificationLabel)
	assert.InDelta(t, 82.5, got.Score, 1e-9)
}

func TestSQLite_Lead_SoftDeleteHidesRow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))

	require.NoError(t, st.SoftDeleteLead(ctx, lead.ID))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Second delete reports not found.
	err = st.SoftDeleteLead(ctx, lead.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
}

func TestSQLite_Lead_BulkCreateAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	leads := []*model.Lead{
		model.NewLead(orgID, userID, "https://one.com"),
		model.NewLead(orgID, userID, "https://two.com"),
		model.NewLead(orgID, userID, "https://three.com"),
	}
	require.NoError(t, st.CreateLeads(ctx, leads))

	listed, err := st.ListLeads(ctx, LeadFilter{OrganizationID: orgID})
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	page, err := st.ListLeads(ctx, LeadFilter{OrganizationID: orgID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestSQLite_CountLeadsCreatedSince(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	for i := 0; i < 4; i++ {
		require.NoError(t, st.CreateLead(ctx, model.NewLead(orgID, userID, "https://acme.com")))
	}

	n, err := st.CountLeadsCreatedSince(ctx, orgID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = st.CountLeadsCreatedSince(ctx, orgID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// --- Stage logs ---

func TestSQLite_StageLogs_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))

	require.NoError(t, st.AppendScrapingLog(ctx, &model.ScrapingLog{
		LeadID:           lead.ID,
		ScrapingMethod:   model.SourceJSONLD,
		Success:          true,
		ConfidenceScore:  0.8,
		ProcessingTimeMS: 120,
		ScrapedData:      `{"title":"Acme"}`,
	}))
	require.NoError(t, st.AppendScrapingLog(ctx, &model.ScrapingLog{
		LeadID:         lead.ID,
		ScrapingMethod: model.SourceStructuredData,
		Success:        false,
		ErrorMessage:   "HTTP 403",
	}))

	logs, err := st.ListScrapingLogs(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.SourceJSONLD, logs[0].ScrapingMethod)
	assert.Equal(t, `{"title":"Acme"}`, logs[0].ScrapedData)
	assert.Equal(t, "HTTP 403", logs[1].ErrorMessage)

	require.NoError(t, st.AppendEnrichmentLog(ctx, &model.EnrichmentLog{
		LeadID:          lead.ID,
		EnrichmentType:  model.SourceHeuristic,
		ConfidenceScore: 0.6,
	}))
	elogs, err := st.ListEnrichmentLogs(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, elogs, 1)
	assert.Equal(t, model.SourceHeuristic, elogs[0].EnrichmentType)
}

// --- API keys ---

func TestSQLite_APIKey_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	k := &model.APIKey{
		KeyHash:        "deadbeef",
		KeyPrefix:      "a1b2c3d4",
		Name:           "ci",
		OrganizationID: orgID,
		UserID:         userID,
		IsActive:       true,
	}
	require.NoError(t, st.CreateAPIKey(ctx, k))

	got, err := st.GetAPIKeyByPrefix(ctx, "a1b2c3d4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "deadbeef", got.KeyHash)
	assert.Nil(t, got.LastUsedAt)

	require.NoError(t, st.TouchAPIKey(ctx, k.ID))
	got, err = st.GetAPIKeyByPrefix(ctx, "a1b2c3d4")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)

	require.NoError(t, st.RevokeAPIKey(ctx, k.ID))
	got, err = st.GetAPIKeyByPrefix(ctx, "a1b2c3d4")
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)
	assert.False(t, got.IsActive)
}

// --- Jobs ---

func TestSQLite_Job_ClaimRetryAndExhaust(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))

	job := &model.Job{LeadID: lead.ID, OrganizationID: orgID, MaxAttempts: 2}
	require.NoError(t, st.EnqueueJob(ctx, job))

	claimed, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, model.JobRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	// Nothing else queued while the job is running.
	none, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	// First failure reschedules immediately (zero backoff for the test).
	require.NoError(t, st.FailJob(ctx, job.ID, "scrape timed out", 0))
	claimed, err = st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 2, claimed.Attempts)

	// Second failure exhausts attempts.
	require.NoError(t, st.FailJob(ctx, job.ID, "scrape timed out again", 0))
	none, err = st.ClaimJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	final, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, model.JobFailed, final.Status)
	assert.Equal(t, "scrape timed out again", final.LastError)
}

func TestSQLite_Job_TerminalFailSkipsRemainingAttempts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))

	job := &model.Job{LeadID: lead.ID, OrganizationID: orgID, MaxAttempts: 3}
	require.NoError(t, st.EnqueueJob(ctx, job))

	claimed, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 1, claimed.Attempts)

	require.NoError(t, st.FailJobTerminal(ctx, job.ID, "lead not found"))

	none, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	final, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, model.JobFailed, final.Status)
	assert.Equal(t, "lead not found", final.LastError)
}

func TestSQLite_Job_BackoffDelaysNextClaim(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))

	job := &model.Job{LeadID: lead.ID, OrganizationID: orgID, MaxAttempts: 3}
	require.NoError(t, st.EnqueueJob(ctx, job))

	claimed, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, st.FailJob(ctx, job.ID, "transient", time.Minute))

	// Rescheduled a minute out: not claimable yet.
	none, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_Job_CompleteClearsError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	orgID, userID := seedOrgAndUser(t, st)

	lead := model.NewLead(orgID, userID, "https://acme.com")
	require.NoError(t, st.CreateLead(ctx, lead))

	job := &model.Job{LeadID: lead.ID, OrganizationID: orgID}
	require.NoError(t, st.EnqueueJob(ctx, job))

	claimed, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, st.CompleteJob(ctx, job.ID))
	final, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, final.Status)
	assert.Empty(t, final.LastError)
}

// --- Plans ---

func TestSQLite_SeedPlans_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	plans := []model.Plan{
		{Name: model.PlanFree, MaxLeadsPerDay: 10},
		{Name: model.PlanPro, MaxLeadsPerDay: 500, CanExport: true, CanUseAI: true},
	}
	require.NoError(t, st.SeedPlans(ctx, plans))

	plans[0].MaxLeadsPerDay = 20
	require.NoError(t, st.SeedPlans(ctx, plans))

	var max int
	err := st.db.QueryRowContext(ctx, `SELECT max_leads_per_day FROM plans WHERE name = 'free'`).Scan(&max)
	require.NoError(t, err)
	assert.Equal(t, 20, max)
}
