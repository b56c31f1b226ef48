package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/store"
)

var _ store.Store = (*memStore)(nil)

// memStore is an in-memory store.Store used by the handler tests.
type memStore struct {
	mu sync.Mutex

	nextID int

	users         map[string]*model.User
	orgs          map[string]*model.Organization
	subscriptions map[string]*model.Subscription
	leads         map[string]*model.Lead
	apiKeys       map[string]*model.APIKey
	jobs          map[string]*model.Job

	scrapingLogs   []model.ScrapingLog
	enrichmentLogs []model.EnrichmentLog
	usageRecords   []model.UsageRecord
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*model.User{},
		orgs:          map[string]*model.Organization{},
		subscriptions: map[string]*model.Subscription{},
		leads:         map[string]*model.Lead{},
		apiKeys:       map[string]*model.APIKey{},
		jobs:          map[string]*model.Job{},
	}
}

func (m *memStore) id(kind string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", kind, m.nextID)
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = m.id("user")
	}
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) CreateOrganization(_ context.Context, org *model.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if org.ID == "" {
		org.ID = m.id("org")
	}
	m.orgs[org.ID] = org
	return nil
}

func (m *memStore) GetOrganization(_ context.Context, id string) (*model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orgs[id], nil
}

func (m *memStore) GetOrganizationByName(_ context.Context, name string) (*model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, org := range m.orgs {
		if org.Name == name {
			return org, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateOrganization(_ context.Context, org *model.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = org
	return nil
}

func (m *memStore) GetSubscription(_ context.Context, orgID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[orgID], nil
}

func (m *memStore) UpsertSubscription(_ context.Context, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = m.id("sub")
	}
	m.subscriptions[sub.OrganizationID] = sub
	return nil
}

func (m *memStore) UpdateSubscription(_ context.Context, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.OrganizationID] = sub
	return nil
}

func (m *memStore) SeedPlans(_ context.Context, _ []model.Plan) error { return nil }

func (m *memStore) CreateLead(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLead(lead)
	return nil
}

func (m *memStore) CreateLeads(_ context.Context, leads []*model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range leads {
		m.insertLead(lead)
	}
	return nil
}

func (m *memStore) insertLead(lead *model.Lead) {
	if lead.ID == "" {
		lead.ID = m.id("lead")
	}
	lead.CreatedAt = time.Now().UTC()
	m.leads[lead.ID] = lead
}

func (m *memStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead := m.leads[id]
	if lead == nil || !lead.IsActive {
		return nil, nil
	}
	return lead, nil
}

func (m *memStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, lead := range m.leads {
		if lead.OrganizationID == filter.OrganizationID && lead.IsActive {
			out = append(out, *lead)
		}
	}
	return out, nil
}

func (m *memStore) UpdateLead(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead
	return nil
}

func (m *memStore) SoftDeleteLead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead := m.leads[id]; lead != nil {
		lead.IsActive = false
	}
	return nil
}

func (m *memStore) CountLeadsCreatedSince(_ context.Context, orgID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, lead := range m.leads {
		if lead.OrganizationID == orgID && !lead.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) AppendScrapingLog(_ context.Context, l *model.ScrapingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapingLogs = append(m.scrapingLogs, *l)
	return nil
}

func (m *memStore) AppendEnrichmentLog(_ context.Context, l *model.EnrichmentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrichmentLogs = append(m.enrichmentLogs, *l)
	return nil
}

func (m *memStore) ListScrapingLogs(_ context.Context, leadID string) ([]model.ScrapingLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScrapingLog
	for _, l := range m.scrapingLogs {
		if l.LeadID == leadID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ListEnrichmentLogs(_ context.Context, leadID string) ([]model.EnrichmentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EnrichmentLog
	for _, l := range m.enrichmentLogs {
		if l.LeadID == leadID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) AppendUsageRecord(_ context.Context, r *model.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageRecords = append(m.usageRecords, *r)
	return nil
}

func (m *memStore) CreateAPIKey(_ context.Context, k *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.ID == "" {
		k.ID = m.id("key")
	}
	m.apiKeys[k.KeyPrefix] = k
	return nil
}

func (m *memStore) GetAPIKeyByPrefix(_ context.Context, prefix string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiKeys[prefix], nil
}

func (m *memStore) TouchAPIKey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, k := range m.apiKeys {
		if k.ID == id {
			k.LastUsedAt = &now
		}
	}
	return nil
}

func (m *memStore) RevokeAPIKey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.apiKeys {
		if k.ID == id {
			k.IsRevoked = true
		}
	}
	return nil
}

func (m *memStore) EnqueueJob(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = m.id("job")
	}
	job.Status = model.JobQueued
	m.jobs[job.ID] = job
	return nil
}

func (m *memStore) ClaimJob(_ context.Context) (*model.Job, error) { return nil, nil }

func (m *memStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}

func (m *memStore) CompleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job := m.jobs[id]; job != nil {
		job.Status = model.JobSucceeded
	}
	return nil
}

func (m *memStore) FailJob(_ context.Context, id string, jobErr string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job := m.jobs[id]; job != nil {
		job.Status = model.JobQueued
		job.LastError = jobErr
	}
	return nil
}

func (m *memStore) FailJobTerminal(_ context.Context, id string, jobErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job := m.jobs[id]; job != nil {
		job.Status = model.JobFailed
		job.LastError = jobErr
	}
	return nil
}

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Ping(_ context.Context) error    { return nil }
func (m *memStore) Close() error                    { return nil }

func (m *memStore) jobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
