package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
	"github.com/tariffsync/tariff-service/internal/storage"
	"github.com/tariffsync/tariff-service/internal/syncer"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

const validSchedule = `{
	"name": "Residential TOU",
	"utility": "Energex",
	"daily_charge": "1.10",
	"seasons": [{"name": "Summer", "from": "1/1", "to": "12/31", "periods": [
		{"name": "Peak", "days": "weekdays", "start": "14:00", "end": "20:00", "buy": 0.35, "sell": 0.05},
		{"name": "Shoulder", "days": "weekdays", "start": "07:00", "end": "14:00", "buy": 0.25, "sell": 0.05},
		{"name": "Off-Peak", "days": "weekdays", "start": "20:00", "end": "07:00", "buy": 0.15, "sell": 0.05},
		{"name": "Weekend", "days": "weekends", "start": "00:00", "end": "24:00", "buy": 0.20, "sell": 0.05}
	]}]
}`

// Weekday evenings are never covered
const gappySchedule = `{
	"name": "Gappy",
	"seasons": [{"name": "Summer", "from": "1/1", "to": "12/31", "periods": [
		{"name": "Day", "days": "weekdays", "start": "00:00", "end": "18:00", "buy": 0.25, "sell": 0.05},
		{"name": "Weekend", "days": "weekends", "start": "00:00", "end": "24:00", "buy": 0.20, "sell": 0.05}
	]}]
}`

type memStore struct {
	mu        sync.Mutex
	schedules map[string]database.Schedule
	overrides map[string]database.Override
	archives  map[string]database.Archive
	runs      []database.SyncRun
	err       error
}

func newMemStore() *memStore {
	return &memStore{
		schedules: make(map[string]database.Schedule),
		overrides: make(map[string]database.Override),
		archives:  make(map[string]database.Archive),
	}
}

func (m *memStore) GetArchiveByID(_ context.Context, id string) (*database.Archive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.archives[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) SaveSchedule(_ context.Context, s *database.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.schedules[s.ID] = *s
	return nil
}

func (m *memStore) GetSchedule(_ context.Context, id string) (*database.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) ListSchedules(context.Context) ([]database.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) DeleteSchedule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memStore) ListSyncRuns(_ context.Context, target string, limit, offset int) ([]database.SyncRun, error) {
	var out []database.SyncRun
	for _, r := range m.runs {
		if target == "" || r.Target == target {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetOverride(_ context.Context, target string) (*database.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[target]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) SetOverride(_ context.Context, o *database.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[o.Target] = *o
	return nil
}

func (m *memStore) ClearOverride(_ context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, target)
	return nil
}

type fakeSync struct {
	run *database.SyncRun
	err error
}

func (f *fakeSync) Trigger(_ context.Context, target string) (*database.SyncRun, error) {
	if target != "home" {
		return nil, syncer.ErrUnknownTarget
	}
	return f.run, f.err
}

func (f *fakeSync) Targets() []string { return []string{"home"} }

func setup(t *testing.T, s Store, svc SyncService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	Init(s, svc, nil)
	t.Cleanup(func() { Init(nil, nil, nil) })
	r := gin.New()
	RegisterRoutes(r.Group("/internal"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCompileStatic(t *testing.T) {
	r := setup(t, nil, nil)

	w := do(r, http.MethodPost, "/internal/compile/static", validSchedule)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[CompileResponse](t, w)
	assert.Len(t, resp.Fingerprint, 64)
	assert.Equal(t, "0.35", resp.Document.EnergyCharges["Summer"].Rates["Peak"].String())
	assert.Equal(t, resp.Fingerprint, tariff.Fingerprint(resp.Document))
}

func TestCompileStaticReportsGaps(t *testing.T) {
	r := setup(t, nil, nil)

	w := do(r, http.MethodPost, "/internal/compile/static", gappySchedule)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ViolationsResponse](t, w)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "gap", resp.Violations[0].Type)
	assert.Equal(t, "Summer", resp.Violations[0].Season)
	assert.Equal(t, []string{"Mon-Fri 18:00-24:00"}, resp.Violations[0].Where)
}

func TestCompileStaticBadRequest(t *testing.T) {
	r := setup(t, nil, nil)

	w := do(r, http.MethodPost, "/internal/compile/static", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateScheduleFieldErrors(t *testing.T) {
	r := setup(t, nil, nil)

	body := `{"name":"x","seasons":[{"name":"S","from":"1/1","to":"12/31","periods":[
		{"name":"A","days":"all","start":"00:15","end":"24:00","buy":0.2},
		{"name":"B","days":"someday","start":"00:00","end":"24:00","buy":0.2}]}]}`
	w := do(r, http.MethodPost, "/internal/compile/validate", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ViolationsResponse](t, w)
	require.Len(t, resp.Violations, 2)
	for _, v := range resp.Violations {
		assert.Equal(t, "field", v.Type)
		assert.NotEmpty(t, v.Path)
	}

	w = do(r, http.MethodPost, "/internal/compile/validate", validSchedule)
	require.Equal(t, http.StatusOK, w.Code)
	ok := decode[ValidateResponse](t, w)
	assert.True(t, ok.Valid)
	assert.Equal(t, 1, ok.Seasons)
}

func TestValidateScheduleReportsEverySeason(t *testing.T) {
	r := setup(t, nil, nil)

	body := `{"name":"x","seasons":[
		{"name":"Summer","from":"10/1","to":"3/31","periods":[
			{"name":"Day","days":"all","start":"00:00","end":"12:00","buy":0.2}]},
		{"name":"Winter","from":"4/1","to":"9/30","periods":[
			{"name":"Flat","days":"all","start":"00:00","end":"24:00","buy":0.2,"sell":0.5}]}]}`
	w := do(r, http.MethodPost, "/internal/compile/validate", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ViolationsResponse](t, w)
	require.Len(t, resp.Violations, 2)
	assert.Equal(t, "gap", resp.Violations[0].Type)
	assert.Equal(t, "Summer", resp.Violations[0].Season)
	assert.Equal(t, "invalid_rate", resp.Violations[1].Type)
	assert.Equal(t, "Winter", resp.Violations[1].Season)
}

func TestPreviewSchedule(t *testing.T) {
	r := setup(t, nil, nil)

	w := do(r, http.MethodPost, "/internal/compile/preview", validSchedule)
	require.Equal(t, http.StatusOK, w.Code)

	p := decode[tariff.SchedulePreview](t, w)
	assert.Equal(t, "$1.10/day", p.DailyCharge)
	require.Len(t, p.Seasons, 1)
	assert.Len(t, p.Seasons[0].Periods, 4)
}

func halfHourly(midnight time.Time, price string) []tariff.PriceSample {
	out := make([]tariff.PriceSample, tariff.SlotsPerDay)
	for k := range out {
		out[k] = tariff.PriceSample{
			EndTime:         midnight.Add(time.Duration(k+1) * tariff.SlotMinutes * time.Minute),
			Price:           decimal.RequireFromString(price),
			IntervalMinutes: tariff.SlotMinutes,
		}
	}
	return out
}

func TestCompileDynamicEndpoint(t *testing.T) {
	r := setup(t, nil, nil)

	zone := time.FixedZone("AEST", 10*60*60)
	now := time.Date(2025, 1, 15, 14, 15, 0, 0, zone)
	today := time.Date(2025, 1, 15, 0, 0, 0, 0, zone)
	tomorrow := today.AddDate(0, 0, 1)
	req := DynamicRequest{
		Now: now,
		Feed: tariff.PriceFeed{
			ImportToday:    halfHourly(today, "0.30"),
			ImportTomorrow: halfHourly(tomorrow, "0.10"),
			ExportToday:    halfHourly(today, "0.05"),
			ExportTomorrow: halfHourly(tomorrow, "0.02"),
		},
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/internal/compile/dynamic", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[DynamicResponse](t, w)
	assert.Equal(t, 28, resp.TomorrowSlots)
	assert.Zero(t, resp.PartialSlots)
	assert.Equal(t, "0.3", resp.Document.EnergyCharges[tariff.DynamicSeason].Rates["PERIOD_14_00"].String())
	assert.Contains(t, resp.Document.Seasons, tariff.DynamicPlaceholder)

	req.Override = "charge"
	body, err = json.Marshal(req)
	require.NoError(t, err)
	w = do(r, http.MethodPost, "/internal/compile/dynamic", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	charged := decode[DynamicResponse](t, w)
	assert.Equal(t, "TARIFF_SYNC:MANUAL:CHARGE", charged.Document.Code)
	assert.NotEqual(t, resp.Fingerprint, charged.Fingerprint)

	req.Feed.ImportToday = nil
	body, err = json.Marshal(req)
	require.NoError(t, err)
	w = do(r, http.MethodPost, "/internal/compile/dynamic", string(body))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "stale_data", decode[ViolationsResponse](t, w).Violations[0].Type)
}

func TestDecodeDocument(t *testing.T) {
	r := setup(t, nil, nil)

	w := do(r, http.MethodPost, "/internal/compile/static", validSchedule)
	require.Equal(t, http.StatusOK, w.Code)
	compiled := decode[CompileResponse](t, w)
	doc, err := json.Marshal(compiled.Document)
	require.NoError(t, err)

	w = do(r, http.MethodPost, "/internal/compile/decode", string(doc))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f := decode[schedule.File](t, w)
	require.Len(t, f.Seasons, 1)

	again, _, err := f.Compile()
	require.NoError(t, err)
	assert.Equal(t, compiled.Fingerprint, tariff.Fingerprint(again))
}

func TestScheduleLifecycle(t *testing.T) {
	s := newMemStore()
	r := setup(t, s, nil)

	w := do(r, http.MethodPut, "/internal/schedules/home-tou", validSchedule)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Residential TOU", s.schedules["home-tou"].Name)

	w = do(r, http.MethodGet, "/internal/schedules", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[ListSchedulesResponse](t, w).Total)

	w = do(r, http.MethodGet, "/internal/schedules/home-tou?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "name: Residential TOU")

	w = do(r, http.MethodGet, "/internal/schedules/home-tou/document", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[CompileResponse](t, w).Fingerprint, 64)

	w = do(r, http.MethodDelete, "/internal/schedules/home-tou", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/internal/schedules/home-tou", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, "/internal/schedules/home-tou", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutScheduleRejectsInvalid(t *testing.T) {
	s := newMemStore()
	r := setup(t, s, nil)

	w := do(r, http.MethodPut, "/internal/schedules/gappy", gappySchedule)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, s.schedules)

	w = do(r, http.MethodPut, "/internal/schedules/Bad%20Id", validSchedule)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutScheduleStoreFailure(t *testing.T) {
	s := newMemStore()
	s.err = errors.New("connection refused")
	r := setup(t, s, nil)

	w := do(r, http.MethodPut, "/internal/schedules/home", validSchedule)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestImportScheduleYAML(t *testing.T) {
	s := newMemStore()
	r := setup(t, s, nil)

	yaml := `
name: Flat
seasons:
  - name: All
    from: 1/1
    to: 12/31
    periods:
      - {name: Flat, days: all, start: "00:00", end: "24:00", buy: 0.28, sell: 0.06}
`
	req := httptest.NewRequest(http.MethodPost, "/internal/schedules/flat/import?filename=flat.yaml", bytes.NewBufferString(yaml))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Flat", s.schedules["flat"].Name)

	req = httptest.NewRequest(http.MethodPost, "/internal/schedules/flat/import", bytes.NewBufferString(""))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedulesWithoutStore(t *testing.T) {
	r := setup(t, nil, nil)

	w := do(r, http.MethodGet, "/internal/schedules", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(r, http.MethodPost, "/internal/sync/home", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTriggerSync(t *testing.T) {
	fp := "abc"
	published := &database.SyncRun{ID: "run_1", Target: "home", Status: database.RunStatusPublished, Fingerprint: &fp}

	tests := []struct {
		name   string
		target string
		svc    *fakeSync
		want   int
	}{
		{"published", "home", &fakeSync{run: published}, http.StatusOK},
		{"unknown target", "shed", &fakeSync{}, http.StatusNotFound},
		{"in flight", "home", &fakeSync{err: syncer.ErrInFlight}, http.StatusConflict},
		{"locked elsewhere", "home", &fakeSync{err: syncer.ErrLocked}, http.StatusConflict},
		{"stale feed", "home", &fakeSync{
			run: &database.SyncRun{ID: "run_2", Status: database.RunStatusFailed},
			err: &tariff.StaleDataError{Slot: 3, HorizonDay: tariff.Tomorrow, Channel: tariff.Import, Reason: "no samples"},
		}, http.StatusUnprocessableEntity},
		{"controller down", "home", &fakeSync{
			run: &database.SyncRun{ID: "run_3", Status: database.RunStatusFailed},
			err: errors.New("tesla: 503"),
		}, http.StatusBadGateway},
		{"store down", "home", &fakeSync{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(t, newMemStore(), tt.svc)
			w := do(r, http.MethodPost, "/internal/sync/"+tt.target, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestOverrideLifecycle(t *testing.T) {
	s := newMemStore()
	r := setup(t, s, &fakeSync{})
	fixed := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	w := do(r, http.MethodGet, "/internal/sync/home/override", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/internal/sync/home/override", `{"mode":"Charge","ttlMinutes":90}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	o := s.overrides["home"]
	assert.Equal(t, "charge", o.Mode)
	require.NotNil(t, o.ExpiresAt)
	assert.Equal(t, fixed.Add(90*time.Minute), *o.ExpiresAt)

	w = do(r, http.MethodGet, "/internal/sync/home/override", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/internal/sync/home/override", `{"mode":"boost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/internal/sync/home/override", `{"mode":"discharge","expiresAt":"2025-01-15T11:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/internal/sync/shed/override", `{"mode":"charge"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/internal/sync/home/override", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, s.overrides)
}

func TestListSyncRuns(t *testing.T) {
	s := newMemStore()
	s.runs = []database.SyncRun{
		{ID: "run_1", Target: "home", Status: database.RunStatusPublished},
		{ID: "run_2", Target: "shed", Status: database.RunStatusFailed},
		{ID: "run_3", Target: "home", Status: database.RunStatusUnchanged},
	}
	r := setup(t, s, &fakeSync{})

	w := do(r, http.MethodGet, "/internal/sync/runs?target=home&limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ListSyncRunsResponse](t, w)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "run_3", resp.Runs[0].ID)

	w = do(r, http.MethodGet, "/internal/sync/runs?target=nobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[ListSyncRunsResponse](t, w).Runs)
	assert.Contains(t, w.Body.String(), `"runs":[]`)

	w = do(r, http.MethodGet, "/internal/sync/runs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	r := setup(t, nil, &fakeSync{})

	w := do(r, http.MethodGet, "/internal/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "not configured", resp.Database)
	assert.Equal(t, []string{"home"}, resp.Targets)
}

func TestGetArchive(t *testing.T) {
	s := newMemStore()
	r := setup(t, s, &fakeSync{})

	w := do(r, http.MethodGet, "/internal/sync/archives/arc_1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	Init(s, &fakeSync{}, local)

	f, err := schedule.ParseJSON([]byte(validSchedule))
	require.NoError(t, err)
	doc, _, err := f.Compile()
	require.NoError(t, err)
	fp := tariff.Fingerprint(doc)
	at := time.Date(2025, 1, 15, 4, 0, 0, 0, time.UTC)
	info, err := storage.ArchiveDocument(context.Background(), local, "home", doc, fp, at)
	require.NoError(t, err)
	s.archives["arc_1"] = database.Archive{ID: "arc_1", Target: "home", Fingerprint: fp, ArchivePath: info.Key, PublishedAt: at}
	s.archives["arc_2"] = database.Archive{ID: "arc_2", Target: "home", ArchivePath: "archives/home/gone.json"}

	w = do(r, http.MethodGet, "/internal/sync/archives/arc_1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ArchiveResponse](t, w)
	assert.Equal(t, fp, tariff.Fingerprint(resp.Document))

	w = do(r, http.MethodGet, "/internal/sync/archives/arc_2", "")
	assert.Equal(t, http.StatusGone, w.Code)
	w = do(r, http.MethodGet, "/internal/sync/archives/arc_9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
