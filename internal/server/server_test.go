package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadboost/leadboost/internal/auth"
	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/quota"
)

type serverFixture struct {
	store   *memStore
	catalog *quota.Catalog
	tokens  *auth.TokenManager
	router  http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	st := newMemStore()
	catalog := quota.NewCatalog(config.PlansConfig{
		Default:    "free",
		Free:       config.PlanConfig{MaxLeadsPerDay: 10},
		Pro:        config.PlanConfig{MaxLeadsPerDay: 500, CanExport: true, CanUseAI: true},
		Enterprise: config.PlanConfig{MaxLeadsPerDay: 10000, CanExport: true, CanUseAI: true},
	})
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	srv := New(st, quota.NewGate(catalog, st), catalog, tokens, config.ServerConfig{
		AllowedOrigins: []string{"*"},
	})

	return &serverFixture{
		store:   st,
		catalog: catalog,
		tokens:  tokens,
		router:  srv.Router(),
	}
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register creates a user and returns its access token.
func (f *serverFixture) register(t *testing.T, email string) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v2/register", "", map[string]string{
		"email":      email,
		"password":   "hunter2hunter2",
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return f.login(t, email)
}

func (f *serverFixture) login(t *testing.T, email string) string {
	t.Helper()

	form := url.Values{"username": {email}, "password": {"hunter2hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v2/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, _ := decodeBody(t, rec)["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "LeadBoost SaaS API", body["service"])
	assert.Equal(t, "2.0.0", body["version"])
}

func TestRegister_CreatesPersonalOrganization(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v2/register", "", map[string]string{
		"email":      "ada@example.com",
		"password":   "hunter2hunter2",
		"first_name": "Ada",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	orgID, _ := body["organization_id"].(string)
	require.NotEmpty(t, orgID)

	org := f.store.orgs[orgID]
	require.NotNil(t, org)
	assert.Equal(t, "Ada's Organization", org.Name)

	sub := f.store.subscriptions[orgID]
	require.NotNil(t, sub)
	assert.Equal(t, model.PlanFree, sub.PlanName)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newServerFixture(t)
	f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/register", "", map[string]string{
		"email":    "ada@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decodeBody(t, rec)["detail"])
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newServerFixture(t)
	f.register(t, "ada@example.com")

	form := url.Values{"username": {"ada@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v2/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Incorrect email or password", decodeBody(t, rec)["detail"])
}

func TestRefresh(t *testing.T) {
	f := newServerFixture(t)
	f.register(t, "ada@example.com")

	form := url.Values{"username": {"ada@example.com"}, "password": {"hunter2hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v2/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRec := httptest.NewRecorder()
	f.router.ServeHTTP(loginRec, req)
	refreshToken, _ := decodeBody(t, loginRec)["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	rec := f.do(t, http.MethodPost, "/api/v2/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])

	rec = f.do(t, http.MethodPost, "/api/v2/refresh", "", map[string]string{
		"refresh_token": "bogus",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", decodeBody(t, rec)["detail"])
}

func TestAuthenticate_Errors(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v2/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Not authenticated", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodGet, "/api/v2/me", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["detail"])

	orphan, err := f.tokens.CreateAccessToken("no-such-user")
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/api/v2/me", orphan, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", decodeBody(t, rec)["detail"])
}

func TestGetMe(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodGet, "/api/v2/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", decodeBody(t, rec)["email"])
}

func TestAPIKeyAuth(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	me := decodeBody(t, f.do(t, http.MethodGet, "/api/v2/me", token, nil))
	userID, _ := me["id"].(string)
	orgID, _ := me["organization_id"].(string)

	key, prefix, hash, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	require.NoError(t, f.store.CreateAPIKey(t.Context(), &model.APIKey{
		KeyHash:        hash,
		KeyPrefix:      prefix,
		Name:           "ci",
		OrganizationID: orgID,
		UserID:         userID,
		IsActive:       true,
	}))

	rec := f.do(t, http.MethodGet, "/api/v2/me", key, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@example.com", decodeBody(t, rec)["email"])

	rec = f.do(t, http.MethodGet, "/api/v2/me", key+"x", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["detail"])
}

func TestCreateLeads(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/leads/", token, map[string]any{
		"urls": []string{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No URLs provided", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodPost, "/api/v2/leads/", token, map[string]any{
		"urls": []string{"https://acme.example", "https://globex.example"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var leads []model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	require.Len(t, leads, 2)
	assert.Equal(t, 2, f.store.jobCount())

	require.Len(t, f.store.usageRecords, 1)
	assert.Equal(t, "lead_created", f.store.usageRecords[0].Action)
	assert.Equal(t, 2, f.store.usageRecords[0].Quantity)
}

func TestCreateLeads_QuotaExceeded(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	urls := make([]string, 11)
	for i := range urls {
		urls[i] = "https://acme.example"
	}
	rec := f.do(t, http.MethodPost, "/api/v2/leads/", token, map[string]any{"urls": urls})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t,
		"Cannot create 11 leads. Only 10 leads remaining for today.",
		decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodPost, "/api/v2/leads/", token, map[string]any{"urls": urls[:10]})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v2/leads/", token, map[string]any{
		"urls": []string{"https://one-more.example"},
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t,
		"Daily lead limit exceeded for your subscription plan",
		decodeBody(t, rec)["detail"])
}

func TestCreateSingleLead_ForeignOrganization(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/leads/single", token, map[string]string{
		"url":             "https://acme.example",
		"organization_id": "someone-elses-org",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t,
		"Not authorized to create leads for this organization",
		decodeBody(t, rec)["detail"])
}

func TestLeadTenancy(t *testing.T) {
	f := newServerFixture(t)
	adaToken := f.register(t, "ada@example.com")
	bobToken := f.register(t, "bob@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/leads/single", adaToken, map[string]string{
		"url": "https://acme.example",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	leadID, _ := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, leadID)

	rec = f.do(t, http.MethodGet, "/api/v2/leads/"+leadID, bobToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to access this lead", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodGet, "/api/v2/leads/nope", adaToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Lead not found", decodeBody(t, rec)["detail"])
}

func TestUpdateAndDeleteLead(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/leads/single", token, map[string]string{
		"url": "https://acme.example",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	leadID, _ := decodeBody(t, rec)["id"].(string)

	rec = f.do(t, http.MethodPut, "/api/v2/leads/"+leadID, token, map[string]string{
		"company_name": "Acme Rockets",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme Rockets", decodeBody(t, rec)["company_name"])

	rec = f.do(t, http.MethodDelete, "/api/v2/leads/"+leadID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lead deleted successfully", decodeBody(t, rec)["message"])

	rec = f.do(t, http.MethodGet, "/api/v2/leads/"+leadID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessLead_RequiresAIPlan(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/leads/single", token, map[string]string{
		"url": "https://acme.example",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	leadID, _ := decodeBody(t, rec)["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v2/leads/"+leadID+"/process", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t,
		"AI features are not available on your subscription plan",
		decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodPost, "/api/v2/billing/upgrade?plan_name=pro", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v2/leads/"+leadID+"/process", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Lead processing started", body["message"])
	assert.Equal(t, leadID, body["lead_id"])
}

func TestOrganizations(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "/api/v2/organizations/", token, map[string]string{
		"name": "Acme Inc",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	orgID, _ := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, orgID)

	rec = f.do(t, http.MethodPost, "/api/v2/organizations/", token, map[string]string{
		"name": "Acme Inc",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Organization with this name already exists", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodGet, "/api/v2/organizations/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme Inc", decodeBody(t, rec)["name"])

	rec = f.do(t, http.MethodGet, "/api/v2/organizations/some-other-org", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to access this organization", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodPut, "/api/v2/organizations/"+orgID, token, map[string]string{
		"name": "Acme International",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme International", decodeBody(t, rec)["name"])
}

func TestBilling(t *testing.T) {
	f := newServerFixture(t)
	token := f.register(t, "ada@example.com")

	rec := f.do(t, http.MethodGet, "/api/v2/billing/usage", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decodeBody(t, rec)
	assert.Equal(t, "free", usage["plan_name"])
	assert.Equal(t, float64(10), usage["max_leads_per_day"])

	rec = f.do(t, http.MethodPost, "/api/v2/billing/upgrade?plan_name=platinum", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid plan name: platinum", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodPost, "/api/v2/billing/upgrade?plan_name=pro", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Subscription upgraded to pro successfully", decodeBody(t, rec)["message"])

	rec = f.do(t, http.MethodGet, "/api/v2/billing/plans", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []model.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 3)
	assert.Equal(t, model.PlanFree, plans[0].Name)

	rec = f.do(t, http.MethodPost, "/api/v2/billing/cancel?immediate=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Subscription cancelled successfully", decodeBody(t, rec)["message"])
}
