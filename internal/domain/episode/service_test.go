package episode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/domain/patient"
	"github.com/caretrack/caretrack/internal/domain/record"
	"github.com/caretrack/caretrack/internal/domain/team"
	"github.com/caretrack/caretrack/internal/platform/auth"
	"github.com/caretrack/caretrack/internal/schema"
)

// -- Mock repository --

type mockRepo struct {
	episodes  map[uuid.UUID]*Episode
	order     []uuid.UUID
	taggings  map[uuid.UUID]*Tagging
	tagOrder  []uuid.UUID
	teamsByID map[uuid.UUID]*team.Team
	updates   int
}

func (m *mockRepo) Create(_ context.Context, e *Episode) error {
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	cp := *e
	m.episodes[e.ID] = &cp
	m.order = append(m.order, e.ID)
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (*Episode, error) {
	e, ok := m.episodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, e *Episode) error {
	if _, ok := m.episodes[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.episodes[e.ID] = &cp
	m.updates++
	return nil
}

func (m *mockRepo) ListActive(_ context.Context) ([]*Episode, error) {
	var out []*Episode
	for _, id := range m.order {
		if e := m.episodes[id]; e.Active {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListActiveByTag(_ context.Context, teamName string) ([]*Episode, error) {
	seen := map[uuid.UUID]bool{}
	var out []*Episode
	for _, tid := range m.tagOrder {
		t := m.taggings[tid]
		if t.Archived || t.TeamID == nil {
			continue
		}
		tm := m.teamsByID[*t.TeamID]
		if tm == nil || !strings.EqualFold(tm.Name, teamName) {
			continue
		}
		e := m.episodes[t.EpisodeID]
		if e == nil || !e.Active || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) ListActiveMine(_ context.Context, userID uuid.UUID) ([]*Episode, error) {
	seen := map[uuid.UUID]bool{}
	var out []*Episode
	for _, tid := range m.tagOrder {
		t := m.taggings[tid]
		if t.Archived || t.UserID == nil || *t.UserID != userID {
			continue
		}
		e := m.episodes[t.EpisodeID]
		if e == nil || !e.Active || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Episode, error) {
	var out []*Episode
	for _, id := range m.order {
		if e := m.episodes[id]; e.PatientID == patientID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ActiveForPatient(_ context.Context, patientID uuid.UUID) (*Episode, error) {
	for _, id := range m.order {
		if e := m.episodes[id]; e.PatientID == patientID && e.Active {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) IDsForPatients(_ context.Context, patientIDs []uuid.UUID) ([]uuid.UUID, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range patientIDs {
		want[id] = true
	}
	var out []uuid.UUID
	for _, id := range m.order {
		if want[m.episodes[id].PatientID] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockRepo) EverTagged(_ context.Context, teamName string) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, tid := range m.tagOrder {
		t := m.taggings[tid]
		if t.TeamID == nil {
			continue
		}
		tm := m.teamsByID[*t.TeamID]
		if tm == nil || !strings.EqualFold(tm.Name, teamName) {
			continue
		}
		if !seen[t.EpisodeID] {
			seen[t.EpisodeID] = true
			out = append(out, t.EpisodeID)
		}
	}
	return out, nil
}

func (m *mockRepo) Taggings(_ context.Context, episodeID uuid.UUID) ([]*Tagging, error) {
	var out []*Tagging
	for _, tid := range m.tagOrder {
		t := m.taggings[tid]
		if t.EpisodeID != episodeID || t.Archived {
			continue
		}
		cp := *t
		if cp.TeamID == nil {
			cp.TeamName = team.MineTeamName
		} else if tm := m.teamsByID[*cp.TeamID]; tm != nil {
			cp.TeamName, cp.Restricted = tm.Name, tm.Restricted
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) AddTagging(_ context.Context, t *Tagging) error {
	t.CreatedAt = time.Now()
	cp := *t
	m.taggings[t.ID] = &cp
	m.tagOrder = append(m.tagOrder, t.ID)
	return nil
}

func (m *mockRepo) ArchiveTagging(_ context.Context, id uuid.UUID) error {
	if t, ok := m.taggings[id]; ok {
		t.Archived = true
	}
	return nil
}

// -- Mock record store --

type createdRecord struct {
	typeName string
	payload  map[string]any
}

type mockRecords struct {
	registry   *schema.Registry
	singletons map[string]map[uuid.UUID]map[string]any
	stored     map[string]map[uuid.UUID][]*record.Record
	created    []createdRecord
}

func newMockRecords(registry *schema.Registry) *mockRecords {
	return &mockRecords{
		registry:   registry,
		singletons: map[string]map[uuid.UUID]map[string]any{},
		stored:     map[string]map[uuid.UUID][]*record.Record{},
	}
}

func (m *mockRecords) UpsertSingleton(_ context.Context, typeName string, ownerID uuid.UUID, payload map[string]any) (*record.Record, error) {
	rt, err := m.registry.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	byOwner, ok := m.singletons[rt.Name]
	if !ok {
		byOwner = map[uuid.UUID]map[string]any{}
		m.singletons[rt.Name] = byOwner
	}
	byOwner[ownerID] = payload
	return &record.Record{ID: uuid.New(), Type: rt, OwnerID: ownerID}, nil
}

func (m *mockRecords) SerializeFor(_ context.Context, scope schema.Scope, ownerID uuid.UUID) (map[string]any, error) {
	out := map[string]any{}
	for typeName, owners := range m.singletons {
		rt, err := m.registry.Resolve(typeName)
		if err != nil {
			return nil, err
		}
		if rt.Scope != scope {
			continue
		}
		if payload, ok := owners[ownerID]; ok {
			out[rt.Name] = []map[string]any{payload}
		}
	}
	for typeName, owners := range m.stored {
		rt, err := m.registry.Resolve(typeName)
		if err != nil {
			return nil, err
		}
		if rt.Scope != scope {
			continue
		}
		if recs, ok := owners[ownerID]; ok {
			items := make([]map[string]any, 0, len(recs))
			for _, r := range recs {
				items = append(items, r.Values)
			}
			out[rt.Name] = items
		}
	}
	return out, nil
}

func (m *mockRecords) ListFor(_ context.Context, typeName string, ownerID uuid.UUID) ([]*record.Record, error) {
	return m.stored[typeName][ownerID], nil
}

func (m *mockRecords) Create(_ context.Context, typeName string, payload map[string]any) (*record.Record, error) {
	rt, err := m.registry.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	m.created = append(m.created, createdRecord{typeName: typeName, payload: payload})
	return &record.Record{ID: uuid.New(), Type: rt}, nil
}

func (m *mockRecords) seed(t *testing.T, typeName string, ownerID uuid.UUID, values map[string]any) {
	t.Helper()
	rt, err := m.registry.Resolve(typeName)
	if err != nil {
		t.Fatalf("seed %s: %v", typeName, err)
	}
	byOwner, ok := m.stored[rt.Name]
	if !ok {
		byOwner = map[uuid.UUID][]*record.Record{}
		m.stored[rt.Name] = byOwner
	}
	byOwner[ownerID] = append(byOwner[ownerID], &record.Record{
		ID: uuid.New(), Type: rt, OwnerID: ownerID, Values: values,
	})
}

// -- Mock collaborators --

type mockPatients struct {
	byHN    map[string]*patient.Patient
	created int
	lastHN  string
}

func (m *mockPatients) GetOrCreate(_ context.Context, hospitalNumber string) (*patient.Patient, bool, error) {
	m.lastHN = hospitalNumber
	if hospitalNumber != "" {
		if p, ok := m.byHN[hospitalNumber]; ok {
			return p, false, nil
		}
	}
	p := &patient.Patient{ID: uuid.New()}
	if hospitalNumber != "" {
		m.byHN[hospitalNumber] = p
	}
	m.created++
	return p, true, nil
}

type mockTeams map[string]*team.Team

func (m mockTeams) Get(_ context.Context, name string) (*team.Team, error) {
	if t, ok := m[name]; ok {
		return t, nil
	}
	return nil, team.ErrNotFound
}

type mockNotifier struct {
	admissions chan map[string]any
	changes    chan [2]map[string]any
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		admissions: make(chan map[string]any, 4),
		changes:    make(chan [2]map[string]any, 4),
	}
}

func (m *mockNotifier) NotifyAdmission(_ context.Context, episode map[string]any) {
	m.admissions <- episode
}

func (m *mockNotifier) NotifyChange(_ context.Context, before, after map[string]any) {
	m.changes <- [2]map[string]any{before, after}
}

// -- Fixture --

type fixture struct {
	svc      *Service
	repo     *mockRepo
	records  *mockRecords
	patients *mockPatients
	teams    mockTeams
	sink     *mockNotifier
}

func newFixture() *fixture {
	registry := schema.Default()
	teams := mockTeams{
		"cardiology":  {ID: uuid.New(), Name: "cardiology", Active: true},
		"respiratory": {ID: uuid.New(), Name: "respiratory", Active: true},
		"hiv":         {ID: uuid.New(), Name: "hiv", Active: true, Restricted: true},
	}
	byID := map[uuid.UUID]*team.Team{}
	for _, tm := range teams {
		byID[tm.ID] = tm
	}
	repo := &mockRepo{
		episodes:  map[uuid.UUID]*Episode{},
		taggings:  map[uuid.UUID]*Tagging{},
		teamsByID: byID,
	}
	records := newMockRecords(registry)
	patients := &mockPatients{byHN: map[string]*patient.Patient{}}
	sink := newMockNotifier()
	passthrough := func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}
	svc := NewService(repo, registry, records, patients, teams, sink, passthrough)
	return &fixture{svc: svc, repo: repo, records: records, patients: patients, teams: teams, sink: sink}
}

func (f *fixture) addEpisode(t *testing.T, patientID uuid.UUID, active bool) *Episode {
	t.Helper()
	e := &Episode{
		ID:               uuid.New(),
		PatientID:        patientID,
		Category:         DefaultCategory,
		Active:           active,
		ConsistencyToken: newConsistencyToken(),
	}
	if err := f.repo.Create(context.Background(), e); err != nil {
		t.Fatalf("seed episode: %v", err)
	}
	return e
}

func (f *fixture) tag(t *testing.T, e *Episode, teamName string) {
	t.Helper()
	tm, ok := f.teams[teamName]
	if !ok {
		t.Fatalf("no such team %q", teamName)
	}
	id := tm.ID
	if err := f.repo.AddTagging(context.Background(), &Tagging{ID: uuid.New(), EpisodeID: e.ID, TeamID: &id}); err != nil {
		t.Fatalf("seed tagging: %v", err)
	}
}

func (f *fixture) tagMine(t *testing.T, e *Episode, userID uuid.UUID) {
	t.Helper()
	if err := f.repo.AddTagging(context.Background(), &Tagging{ID: uuid.New(), EpisodeID: e.ID, UserID: &userID}); err != nil {
		t.Fatalf("seed personal tagging: %v", err)
	}
}

func waitAdmission(t *testing.T, sink *mockNotifier) map[string]any {
	t.Helper()
	select {
	case got := <-sink.admissions:
		return got
	case <-time.After(time.Second):
		t.Fatal("expected an admission notification")
		return nil
	}
}

func tagNames(t *testing.T, serialized map[string]any) map[string]bool {
	t.Helper()
	tagging, ok := serialized["tagging"].([]map[string]bool)
	if !ok || len(tagging) != 1 {
		t.Fatalf("tagging = %v, want one-element list", serialized["tagging"])
	}
	return tagging[0]
}

// -- Admission --

func TestAdmit_CreatesPatientAndEpisode(t *testing.T) {
	f := newFixture()
	viewer := auth.User{ID: uuid.New(), Username: "betty"}

	serialized, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics": map[string]any{"hospital_number": "100001", "name": "Ada Lovelace"},
		"location":     map[string]any{"ward": "T8", "bed": "13"},
		"tagging":      []any{map[string]any{"cardiology": true, "mine": true, "discharged": false}},
	}, viewer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.patients.created != 1 || f.patients.lastHN != "100001" {
		t.Errorf("created=%d lastHN=%q, want one patient for 100001", f.patients.created, f.patients.lastHN)
	}
	p := f.patients.byHN["100001"]
	if f.records.singletons["demographics"][p.ID] == nil {
		t.Error("expected the demographics singleton to be written")
	}

	if serialized["category"] != DefaultCategory {
		t.Errorf("category = %v, want %q", serialized["category"], DefaultCategory)
	}
	if serialized["active"] != true {
		t.Errorf("active = %v, want true", serialized["active"])
	}
	id := serialized["id"].(uuid.UUID)
	if f.records.singletons["location"][id] == nil {
		t.Error("expected the location singleton to be written")
	}

	tags := tagNames(t, serialized)
	if !tags["cardiology"] || !tags["mine"] {
		t.Errorf("tagging = %v, want cardiology and mine", tags)
	}
	if tags["discharged"] {
		t.Error("falsy tag names must be ignored")
	}

	waitAdmission(t, f.sink)
}

func TestAdmit_ReusesPatientByHospitalNumber(t *testing.T) {
	f := newFixture()
	existing := &patient.Patient{ID: uuid.New()}
	f.patients.byHN["100001"] = existing

	serialized, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics": map[string]any{"hospital_number": "100001"},
	}, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.patients.created != 0 {
		t.Errorf("created %d patients, want 0", f.patients.created)
	}
	if serialized["patient_id"] != existing.ID {
		t.Errorf("patient_id = %v, want %v", serialized["patient_id"], existing.ID)
	}
}

func TestAdmit_SecondActiveEpisodeRejected(t *testing.T) {
	f := newFixture()
	existing := &patient.Patient{ID: uuid.New()}
	f.patients.byHN["100001"] = existing
	f.addEpisode(t, existing.ID, true)

	_, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics": map[string]any{"hospital_number": "100001"},
	}, auth.User{ID: uuid.New()})
	if !errors.Is(err, ErrActiveEpisode) {
		t.Fatalf("err = %v, want ErrActiveEpisode", err)
	}
	if len(f.repo.episodes) != 1 {
		t.Errorf("episodes = %d, want the seeded one only", len(f.repo.episodes))
	}
}

func TestAdmit_InactiveEpisodeDoesNotBlock(t *testing.T) {
	f := newFixture()
	existing := &patient.Patient{ID: uuid.New()}
	f.patients.byHN["100001"] = existing
	f.addEpisode(t, existing.ID, false)

	_, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics": map[string]any{"hospital_number": "100001"},
	}, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.repo.episodes) != 2 {
		t.Errorf("episodes = %d, want 2", len(f.repo.episodes))
	}
}

func TestAdmit_MissingDemographics(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Admit(context.Background(), map[string]any{
		"location": map[string]any{"ward": "T8"},
	}, auth.User{ID: uuid.New()})
	if !errors.Is(err, ErrMissingDemographics) {
		t.Errorf("err = %v, want ErrMissingDemographics", err)
	}
}

func TestAdmit_PayloadCategoryAndDate(t *testing.T) {
	f := newFixture()

	serialized, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics":      map[string]any{"hospital_number": "100001"},
		"category":          "outpatient",
		"date_of_admission": "01/06/2020",
	}, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if serialized["category"] != "outpatient" {
		t.Errorf("category = %v, want outpatient", serialized["category"])
	}
	if serialized["date_of_admission"] != "2020-06-01" {
		t.Errorf("date_of_admission = %v, want 2020-06-01", serialized["date_of_admission"])
	}
}

func TestAdmit_MalformedDate(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics":      map[string]any{"hospital_number": "100001"},
		"date_of_admission": "June 1st",
	}, auth.User{ID: uuid.New()})
	var badDate *record.MalformedDateError
	if !errors.As(err, &badDate) {
		t.Errorf("err = %v, want MalformedDateError", err)
	}
}

func TestAdmit_UnknownTagRejected(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Admit(context.Background(), map[string]any{
		"demographics": map[string]any{"hospital_number": "100001"},
		"tagging":      []any{map[string]any{"astrology": true}},
	}, auth.User{ID: uuid.New()})
	if !errors.Is(err, team.ErrNotFound) {
		t.Errorf("err = %v, want team.ErrNotFound", err)
	}
}

// -- Update --

func TestUpdate_StaleTokenRejected(t *testing.T) {
	f := newFixture()
	e := f.addEpisode(t, uuid.New(), true)

	_, err := f.svc.Update(context.Background(), e.ID, map[string]any{
		"consistency_token": "ffffffff",
		"category":          "review",
	}, auth.User{ID: uuid.New()})
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("err = %v, want ErrConsistency", err)
	}
	if f.repo.updates != 0 {
		t.Errorf("updates = %d, want 0", f.repo.updates)
	}
}

func TestUpdate_MissingTokenRejected(t *testing.T) {
	f := newFixture()
	e := f.addEpisode(t, uuid.New(), true)

	_, err := f.svc.Update(context.Background(), e.ID, map[string]any{
		"category": "review",
	}, auth.User{ID: uuid.New()})
	if !errors.Is(err, ErrConsistency) {
		t.Errorf("err = %v, want ErrConsistency", err)
	}
}

func TestUpdate_RotatesTokenAndNotifies(t *testing.T) {
	f := newFixture()
	e := f.addEpisode(t, uuid.New(), true)

	after, err := f.svc.Update(context.Background(), e.ID, map[string]any{
		"consistency_token": e.ConsistencyToken,
		"discharge_date":    "15/07/2020",
		"active":            false,
	}, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if after["discharge_date"] != "2020-07-15" {
		t.Errorf("discharge_date = %v, want 2020-07-15", after["discharge_date"])
	}
	if after["active"] != false {
		t.Errorf("active = %v, want false", after["active"])
	}
	token, _ := after["consistency_token"].(string)
	if token == e.ConsistencyToken || len(token) != 8 {
		t.Errorf("token = %q, want a fresh 8-char token", token)
	}

	select {
	case pair := <-f.sink.changes:
		if pair[0]["active"] != true || pair[1]["active"] != false {
			t.Errorf("change notification = %v -> %v, want active true -> false",
				pair[0]["active"], pair[1]["active"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestUpdate_ReplacesTags(t *testing.T) {
	f := newFixture()
	e := f.addEpisode(t, uuid.New(), true)
	f.tag(t, e, "cardiology")

	after, err := f.svc.Update(context.Background(), e.ID, map[string]any{
		"consistency_token": e.ConsistencyToken,
		"tagging":           []any{map[string]any{"respiratory": true}},
	}, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tags := tagNames(t, after)
	if !tags["respiratory"] || tags["cardiology"] {
		t.Errorf("tagging = %v, want respiratory only", tags)
	}

	// The removed tag stays visible to historical search.
	ever, err := f.svc.EverTagged(context.Background(), "cardiology")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ever) != 1 || ever[0] != e.ID {
		t.Errorf("EverTagged = %v, want the episode", ever)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Update(context.Background(), uuid.New(), map[string]any{}, auth.User{ID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// -- Copy to category --

func TestCopyToCategory_CopiesNonSingletonSubrecords(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	src := f.addEpisode(t, patientID, true)
	admitted := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	src.DateOfAdmission = &admitted
	if err := f.repo.Update(context.Background(), src); err != nil {
		t.Fatalf("seed admission date: %v", err)
	}
	f.repo.updates = 0

	f.records.seed(t, "diagnosis", src.ID, map[string]any{"condition": "Myocardial Infarction"})
	f.records.seed(t, "diagnosis", src.ID, map[string]any{"condition": "Anaemia"})
	f.records.singletons["location"] = map[uuid.UUID]map[string]any{src.ID: {"ward": "T8"}}
	f.tag(t, src, "cardiology")

	serialized, err := f.svc.CopyToCategory(context.Background(), src.ID, "research", auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if serialized["category"] != "research" {
		t.Errorf("category = %v, want research", serialized["category"])
	}
	if serialized["active"] != false {
		t.Errorf("active = %v, want false for a copy", serialized["active"])
	}
	if serialized["date_of_admission"] != "2020-06-01" {
		t.Errorf("date_of_admission = %v, want the source's", serialized["date_of_admission"])
	}
	if serialized["patient_id"] != patientID {
		t.Errorf("patient_id = %v, want %v", serialized["patient_id"], patientID)
	}

	copyID := serialized["id"].(uuid.UUID)
	if len(f.records.created) != 2 {
		t.Fatalf("copied %d records, want 2", len(f.records.created))
	}
	for _, cr := range f.records.created {
		if cr.typeName != "diagnosis" {
			t.Errorf("copied type = %q, want diagnosis", cr.typeName)
		}
		if cr.payload["episode_id"] != copyID.String() {
			t.Errorf("copy owner = %v, want %v", cr.payload["episode_id"], copyID)
		}
	}
	if f.records.singletons["location"][copyID] != nil {
		t.Error("singleton subrecords must not be copied")
	}
	if tags := tagNames(t, serialized); len(tags) != 0 {
		t.Errorf("tagging = %v, want none on the copy", tags)
	}

	waitAdmission(t, f.sink)
}

func TestCopyToCategory_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CopyToCategory(context.Background(), uuid.New(), "research", auth.User{ID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// -- Listing --

func TestListByTag_FiltersByTeam(t *testing.T) {
	f := newFixture()
	tagged := f.addEpisode(t, uuid.New(), true)
	f.tag(t, tagged, "cardiology")
	f.addEpisode(t, uuid.New(), true)

	episodes, err := f.svc.ListByTag(context.Background(), "cardiology", "", auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(episodes) != 1 || episodes[0]["id"] != tagged.ID {
		t.Errorf("episodes = %v, want the tagged one only", episodes)
	}
}

func TestListByTag_SubtagNarrows(t *testing.T) {
	f := newFixture()
	sub := f.addEpisode(t, uuid.New(), true)
	f.tag(t, sub, "respiratory")
	parent := f.addEpisode(t, uuid.New(), true)
	f.tag(t, parent, "cardiology")

	episodes, err := f.svc.ListByTag(context.Background(), "medicine", "respiratory", auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(episodes) != 1 || episodes[0]["id"] != sub.ID {
		t.Errorf("episodes = %v, want the subteam's episode only", episodes)
	}
}

func TestListByTag_Mine(t *testing.T) {
	f := newFixture()
	me := uuid.New()
	mine := f.addEpisode(t, uuid.New(), true)
	f.tagMine(t, mine, me)
	other := f.addEpisode(t, uuid.New(), true)
	f.tagMine(t, other, uuid.New())

	episodes, err := f.svc.ListByTag(context.Background(), team.MineTeamName, "", auth.User{ID: me})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(episodes) != 1 || episodes[0]["id"] != mine.ID {
		t.Errorf("episodes = %v, want my episode only", episodes)
	}
}

func TestListByTag_NoTagListsAllActive(t *testing.T) {
	f := newFixture()
	f.addEpisode(t, uuid.New(), true)
	f.addEpisode(t, uuid.New(), true)
	f.addEpisode(t, uuid.New(), false)

	episodes, err := f.svc.ListByTag(context.Background(), "", "", auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(episodes) != 2 {
		t.Errorf("episodes = %d, want the 2 active ones", len(episodes))
	}
}

// -- Serialization --

func TestSerialize_TagVisibility(t *testing.T) {
	f := newFixture()
	e := f.addEpisode(t, uuid.New(), true)
	f.tag(t, e, "cardiology")
	f.tag(t, e, "hiv")
	owner := uuid.New()
	f.tagMine(t, e, owner)

	plain, err := f.svc.Serialize(context.Background(), e.ID, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := tagNames(t, plain)
	if !tags["cardiology"] || tags["hiv"] || tags["mine"] {
		t.Errorf("plain viewer tags = %v, want cardiology only", tags)
	}

	personal, err := f.svc.Serialize(context.Background(), e.ID, auth.User{ID: owner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags = tagNames(t, personal)
	if !tags["cardiology"] || !tags["mine"] || tags["hiv"] {
		t.Errorf("owner tags = %v, want cardiology and mine", tags)
	}

	super, err := f.svc.Serialize(context.Background(), e.ID, auth.User{ID: uuid.New(), Role: auth.RoleSuperuser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags = tagNames(t, super)
	if !tags["cardiology"] || !tags["hiv"] {
		t.Errorf("superuser tags = %v, want cardiology and hiv", tags)
	}
}

func TestSerializeForPatient_IncludesPatientSubrecords(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	f.addEpisode(t, patientID, true)
	f.addEpisode(t, patientID, false)
	f.records.singletons["demographics"] = map[uuid.UUID]map[string]any{
		patientID: {"hospital_number": "100001"},
	}

	episodes, err := f.svc.SerializeForPatient(context.Background(), patientID, auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("episodes = %d, want 2", len(episodes))
	}
	for _, e := range episodes {
		demo, ok := e["demographics"].([]map[string]any)
		if !ok || len(demo) != 1 || demo[0]["hospital_number"] != "100001" {
			t.Errorf("demographics = %v, want the patient's singleton", e["demographics"])
		}
	}
}

func TestIDsForPatients_EmptyInput(t *testing.T) {
	f := newFixture()
	f.addEpisode(t, uuid.New(), true)

	ids, err := f.svc.IDsForPatients(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
}
