package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/toolgate/pkg/audit"
	"github.com/platinummonkey/toolgate/pkg/catalog"
	"github.com/platinummonkey/toolgate/pkg/observability"
	"github.com/platinummonkey/toolgate/pkg/registry"
)

const (
	viewToken   = "view-token"
	manageToken = "manage-token"
)

var adminUniverse = registry.MustNew([]registry.Descriptor{
	{Name: "query_dataset", DisplayName: "Query Dataset", Category: registry.CategoryData},
	{Name: "export_dataset", DisplayName: "Export Dataset", Category: registry.CategoryData},
	{Name: "forecast", DisplayName: "Forecast", Category: registry.CategoryAnalysis},
})

// adminStore is an in-memory catalog.Store for handler tests.
type adminStore struct {
	mu        sync.Mutex
	plans     map[uuid.UUID]catalog.PlanTier
	entries   map[string]catalog.CatalogEntry
	overrides map[uuid.UUID]map[string]catalog.TenantOverride
	failing   bool
}

func newAdminStore() *adminStore {
	return &adminStore{
		plans:     make(map[uuid.UUID]catalog.PlanTier),
		entries:   make(map[string]catalog.CatalogEntry),
		overrides: make(map[uuid.UUID]map[string]catalog.TenantOverride),
	}
}

func (s *adminStore) fail() error {
	if s.failing {
		return fmt.Errorf("query: %w: connection refused", catalog.ErrStoreUnavailable)
	}
	return nil
}

func (s *adminStore) ListCatalog(context.Context) ([]catalog.CatalogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	out := make([]catalog.CatalogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *adminStore) GetCatalogEntry(_ context.Context, capability string) (*catalog.CatalogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	if e, ok := s.entries[capability]; ok {
		return &e, nil
	}
	return nil, nil
}

func (s *adminStore) SeedCatalog(_ context.Context, entries []catalog.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, exists := s.entries[e.Capability]; !exists {
			s.entries[e.Capability] = e
		}
	}
	return nil
}

func (s *adminStore) ListOverrides(_ context.Context, tenantID uuid.UUID) ([]catalog.TenantOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	out := make([]catalog.TenantOverride, 0)
	for _, o := range s.overrides[tenantID] {
		out = append(out, o)
	}
	return out, nil
}

func (s *adminStore) GetOverride(_ context.Context, tenantID uuid.UUID, capability string) (*catalog.TenantOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	if o, ok := s.overrides[tenantID][capability]; ok {
		return &o, nil
	}
	return nil, nil
}

func (s *adminStore) UpsertOverride(_ context.Context, override catalog.TenantOverride) (*catalog.TenantOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	override.SetAt = time.Now()
	if s.overrides[override.TenantID] == nil {
		s.overrides[override.TenantID] = make(map[string]catalog.TenantOverride)
	}
	s.overrides[override.TenantID][override.Capability] = override
	return &override, nil
}

func (s *adminStore) DeleteOverride(_ context.Context, tenantID uuid.UUID, capability string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return false, err
	}
	if _, ok := s.overrides[tenantID][capability]; !ok {
		return false, nil
	}
	delete(s.overrides[tenantID], capability)
	return true, nil
}

func (s *adminStore) GetTenantPlan(_ context.Context, tenantID uuid.UUID) (catalog.PlanTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return "", err
	}
	plan, ok := s.plans[tenantID]
	if !ok {
		return "", fmt.Errorf("%w: %s", catalog.ErrTenantNotFound, tenantID)
	}
	return plan, nil
}

func (s *adminStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// recordingAuditLogger captures emitted audit events.
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *recordingAuditLogger) Log(_ context.Context, event *audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	return nil
}

func (l *recordingAuditLogger) Close() error { return nil }

func (l *recordingAuditLogger) byType(eventType audit.EventType) []audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]audit.Event, 0)
	for _, e := range l.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type adminFixture struct {
	router   *mux.Router
	store    *adminStore
	audits   *recordingAuditLogger
	tenantID uuid.UUID
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	store := newAdminStore()
	tenantID := uuid.New()
	store.plans[tenantID] = catalog.PlanProfessional

	cache, err := catalog.NewMemoryCache(100, time.Minute)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	selection := catalog.NewSelectionService(store, cache, adminUniverse, catalog.NewDisabledSet([]string{"forecast"}), time.Minute, logger, metrics)

	checker := NewStaticChecker(map[string]Principal{
		viewToken: {
			Actor:       "viewer@example.com",
			Permissions: map[Permission]bool{PermissionView: true},
		},
		manageToken: {
			Actor:       "operator@example.com",
			Permissions: map[Permission]bool{PermissionManage: true},
		},
	})

	audits := &recordingAuditLogger{}
	router := mux.NewRouter()
	NewHandlers(selection, checker, audits, logger).RegisterRoutes(router)

	return &adminFixture{router: router, store: store, audits: audits, tenantID: tenantID}
}

func (f *adminFixture) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandlers_AuthRequired(t *testing.T) {
	f := newAdminFixture(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"missing credentials", "", http.StatusUnauthorized},
		{"unknown token", "not-a-token", http.StatusUnauthorized},
		{"view token allowed", viewToken, http.StatusOK},
		{"manage token implies view", manageToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := f.do(t, http.MethodGet, "/api/v1/tools/catalog", tt.token, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, resp.Success)
		})
	}
}

func TestHandlers_ViewTokenCannotMutate(t *testing.T) {
	f := newAdminFixture(t)

	rec, resp := f.do(t, http.MethodPost,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/override", viewToken,
		`{"capability":"query_dataset","enabled":false}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)

	denied := f.audits.byType(audit.EventTypeAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "viewer@example.com", denied[0].Actor)
	assert.Equal(t, audit.EventStatusDenied, denied[0].Status)
}

func TestHandlers_SetOverride(t *testing.T) {
	f := newAdminFixture(t)

	rec, resp := f.do(t, http.MethodPost,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/override", manageToken,
		`{"capability":"query_dataset","enabled":false,"reason":"incident 4821"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	stored := f.store.overrides[f.tenantID]["query_dataset"]
	assert.False(t, stored.Enabled)
	assert.Equal(t, "incident 4821", stored.Reason)
	assert.Equal(t, "operator@example.com", stored.SetBy)

	set := f.audits.byType(audit.EventTypeOverrideSet)
	require.Len(t, set, 1)
	assert.Equal(t, "operator@example.com", set[0].Actor)
	assert.Equal(t, "query_dataset", set[0].Capability)
}

func TestHandlers_SetOverride_Validation(t *testing.T) {
	f := newAdminFixture(t)
	path := "/api/v1/tools/tenants/" + f.tenantID.String() + "/override"

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{broken`},
		{"missing capability", `{"enabled":true}`},
		{"missing enabled", `{"capability":"query_dataset"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodPost, path, manageToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlers_SetOverride_UnknownCapability(t *testing.T) {
	f := newAdminFixture(t)

	rec, _ := f.do(t, http.MethodPost,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/override", manageToken,
		`{"capability":"no_such_tool","enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.audits.byType(audit.EventTypeOverrideSet))
}

func TestHandlers_SetOverride_UnknownTenant(t *testing.T) {
	f := newAdminFixture(t)

	rec, _ := f.do(t, http.MethodPost,
		"/api/v1/tools/tenants/"+uuid.NewString()+"/override", manageToken,
		`{"capability":"query_dataset","enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_SetOverride_InvalidTenantID(t *testing.T) {
	f := newAdminFixture(t)

	rec, _ := f.do(t, http.MethodPost,
		"/api/v1/tools/tenants/not-a-uuid/override", manageToken,
		`{"capability":"query_dataset","enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_SetOverride_StoreOutage(t *testing.T) {
	f := newAdminFixture(t)
	f.store.setFailing(true)

	rec, resp := f.do(t, http.MethodPost,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/override", manageToken,
		`{"capability":"query_dataset","enabled":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
}

func TestHandlers_RemoveOverride(t *testing.T) {
	f := newAdminFixture(t)
	f.store.overrides[f.tenantID] = map[string]catalog.TenantOverride{
		"query_dataset": {TenantID: f.tenantID, Capability: "query_dataset", Enabled: false},
	}

	rec, resp := f.do(t, http.MethodDelete,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/override/query_dataset", manageToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Empty(t, f.store.overrides[f.tenantID])

	removed := f.audits.byType(audit.EventTypeOverrideRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "query_dataset", removed[0].Capability)
}

func TestHandlers_RemoveOverride_Absent(t *testing.T) {
	f := newAdminFixture(t)

	rec, _ := f.do(t, http.MethodDelete,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/override/query_dataset", manageToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_GetEffective(t *testing.T) {
	f := newAdminFixture(t)

	rec, resp := f.do(t, http.MethodGet,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/effective", viewToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var data struct {
		Total        int                           `json:"total"`
		Capabilities []catalog.EffectiveCapability `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, adminUniverse.Len(), data.Total)

	for _, c := range data.Capabilities {
		if c.Capability == "forecast" {
			assert.False(t, c.Enabled)
			assert.Equal(t, catalog.SourceGlobalDisabled, c.Source)
		}
	}
}

func TestHandlers_GetEffective_ReadsFresh(t *testing.T) {
	f := newAdminFixture(t)
	path := "/api/v1/tools/tenants/" + f.tenantID.String() + "/effective"

	_, first := f.do(t, http.MethodGet, path, viewToken, "")
	require.True(t, first.Success)

	// A direct store mutation is visible immediately, no TTL wait.
	f.store.mu.Lock()
	f.store.entries["query_dataset"] = catalog.CatalogEntry{
		Capability:     "query_dataset",
		DefaultEnabled: false,
		MinPlan:        catalog.PlanStarter,
	}
	f.store.mu.Unlock()

	_, second := f.do(t, http.MethodGet, path, viewToken, "")
	raw, err := json.Marshal(second.Data)
	require.NoError(t, err)
	var data struct {
		Capabilities []catalog.EffectiveCapability `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(raw, &data))

	found := false
	for _, c := range data.Capabilities {
		if c.Capability == "query_dataset" {
			found = true
			assert.False(t, c.Enabled)
		}
	}
	assert.True(t, found)
}

func TestHandlers_GetSummary(t *testing.T) {
	f := newAdminFixture(t)

	rec, resp := f.do(t, http.MethodGet,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/summary", viewToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var summary catalog.AvailabilitySummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, adminUniverse.Len(), summary.Total)
	assert.Equal(t, 2, summary.Enabled)
}

func TestHandlers_GetCatalogEntry_Unknown(t *testing.T) {
	f := newAdminFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/tools/catalog/no_such_tool", viewToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_GetGloballyDisabled(t *testing.T) {
	f := newAdminFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/tools/global-disabled", viewToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var data struct {
		Capabilities []string `json:"capabilities"`
		Total        int      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, []string{"forecast"}, data.Capabilities)
	assert.Equal(t, 1, data.Total)
}

func TestHandlers_ListOverrides(t *testing.T) {
	f := newAdminFixture(t)
	f.store.overrides[f.tenantID] = map[string]catalog.TenantOverride{
		"query_dataset": {TenantID: f.tenantID, Capability: "query_dataset", Enabled: false, Reason: "abuse"},
	}

	rec, resp := f.do(t, http.MethodGet,
		"/api/v1/tools/tenants/"+f.tenantID.String()+"/overrides", viewToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var data struct {
		Overrides []catalog.TenantOverride `json:"overrides"`
		Total     int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(raw, &data))
	require.Equal(t, 1, data.Total)
	assert.Equal(t, "abuse", data.Overrides[0].Reason)
}

func TestPrincipal_Can(t *testing.T) {
	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.Can(PermissionView))

	viewer := &Principal{Permissions: map[Permission]bool{PermissionView: true}}
	assert.True(t, viewer.Can(PermissionView))
	assert.False(t, viewer.Can(PermissionManage))

	manager := &Principal{Permissions: map[Permission]bool{PermissionManage: true}}
	assert.True(t, manager.Can(PermissionManage))
	assert.True(t, manager.Can(PermissionView))
}
