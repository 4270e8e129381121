package episode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/domain/patient"
	"github.com/caretrack/caretrack/internal/domain/record"
	"github.com/caretrack/caretrack/internal/domain/team"
	"github.com/caretrack/caretrack/internal/platform/auth"
	"github.com/caretrack/caretrack/internal/platform/db"
	"github.com/caretrack/caretrack/internal/schema"
)

var (
	// ErrActiveEpisode rejects an admission for a patient who already
	// has an active episode.
	ErrActiveEpisode = errors.New("patient already has active episode")
	// ErrMissingDemographics rejects an admission payload without a
	// demographics object.
	ErrMissingDemographics = errors.New("demographics is required")
)

// Subrecord types the admission flow writes directly.
const (
	demographicsType = "demographics"
	locationType     = "location"
)

// RecordStore is the slice of the record service the episode flows
// need: singleton upserts during admission, copies during
// copy-to-category, and scoped serialization.
type RecordStore interface {
	SerializeFor(ctx context.Context, scope schema.Scope, ownerID uuid.UUID) (map[string]any, error)
	UpsertSingleton(ctx context.Context, typeName string, ownerID uuid.UUID, payload map[string]any) (*record.Record, error)
	ListFor(ctx context.Context, typeName string, ownerID uuid.UUID) ([]*record.Record, error)
	Create(ctx context.Context, typeName string, payload map[string]any) (*record.Record, error)
}

// PatientDirectory resolves admissions to patients. Satisfied by the
// patient service.
type PatientDirectory interface {
	GetOrCreate(ctx context.Context, hospitalNumber string) (*patient.Patient, bool, error)
}

// TeamDirectory resolves tag names to teams. Satisfied by the team
// service.
type TeamDirectory interface {
	Get(ctx context.Context, name string) (*team.Team, error)
}

// Notifier forwards lifecycle events downstream. Satisfied by the
// integration sink.
type Notifier interface {
	NotifyAdmission(ctx context.Context, episode map[string]any)
	NotifyChange(ctx context.Context, before, after map[string]any)
}

type Service struct {
	repo     Repository
	registry *schema.Registry
	records  RecordStore
	patients PatientDirectory
	teams    TeamDirectory
	sink     Notifier
	tx       db.TxRunner
}

func NewService(repo Repository, registry *schema.Registry, records RecordStore,
	patients PatientDirectory, teams TeamDirectory, sink Notifier, tx db.TxRunner) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		records:  records,
		patients: patients,
		teams:    teams,
		sink:     sink,
		tx:       tx,
	}
}

// Admit runs the admission flow: find or create the patient named by
// the demographics hospital number, write the demographics singleton,
// create an active episode with its location singleton, and set the
// requested tags. The whole flow runs in one transaction; the sink is
// notified after commit.
func (s *Service) Admit(ctx context.Context, payload map[string]any, viewer auth.User) (map[string]any, error) {
	demographics, ok := payload[demographicsType].(map[string]any)
	if !ok || len(demographics) == 0 {
		return nil, ErrMissingDemographics
	}
	hospitalNumber, _ := demographics["hospital_number"].(string)

	e := &Episode{
		ID:               uuid.New(),
		Category:         DefaultCategory,
		Active:           true,
		ConsistencyToken: newConsistencyToken(),
	}
	if err := applyFields(e, payload); err != nil {
		return nil, err
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		p, _, err := s.patients.GetOrCreate(ctx, hospitalNumber)
		if err != nil {
			return err
		}
		if _, err := s.records.UpsertSingleton(ctx, demographicsType, p.ID, demographics); err != nil {
			return fmt.Errorf("write demographics: %w", err)
		}

		if _, err := s.repo.ActiveForPatient(ctx, p.ID); err == nil {
			return ErrActiveEpisode
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		e.PatientID = p.ID
		if err := s.repo.Create(ctx, e); err != nil {
			return err
		}

		if location, ok := payload[locationType].(map[string]any); ok && len(location) > 0 {
			if _, err := s.records.UpsertSingleton(ctx, locationType, e.ID, location); err != nil {
				return fmt.Errorf("write location: %w", err)
			}
		}

		if names, present := taggingFromPayload(payload); present {
			if err := s.setTagNames(ctx, e.ID, names, viewer.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	serialized, err := s.serialize(ctx, e, viewer)
	if err != nil {
		return nil, err
	}
	go s.sink.NotifyAdmission(context.Background(), serialized)
	return serialized, nil
}

// Update rewrites the supplied episode fields. When the stored episode
// carries a consistency token the payload must echo it, otherwise the
// write is rejected with ErrConsistency. A tagging entry in the payload
// replaces the episode's current tags.
func (s *Service) Update(ctx context.Context, id uuid.UUID, payload map[string]any, viewer auth.User) (map[string]any, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before, err := s.serialize(ctx, e, viewer)
	if err != nil {
		return nil, err
	}

	if e.ConsistencyToken != "" {
		provided, _ := payload["consistency_token"].(string)
		if provided != e.ConsistencyToken {
			return nil, ErrConsistency
		}
	}

	if err := applyFields(e, payload); err != nil {
		return nil, err
	}
	e.ConsistencyToken = newConsistencyToken()

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		if names, present := taggingFromPayload(payload); present {
			return s.setTagNames(ctx, e.ID, names, viewer.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	after, err := s.serialize(ctx, e, viewer)
	if err != nil {
		return nil, err
	}
	go s.sink.NotifyChange(context.Background(), before, after)
	return after, nil
}

// CopyToCategory creates a new episode on the same patient with the
// given category and the source's admission date, then copies every
// non-singleton episode subrecord across. Taggings are not copied and
// the copy starts inactive.
func (s *Service) CopyToCategory(ctx context.Context, id uuid.UUID, category string, viewer auth.User) (map[string]any, error) {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := &Episode{
		ID:               uuid.New(),
		PatientID:        src.PatientID,
		Category:         category,
		DateOfAdmission:  src.DateOfAdmission,
		ConsistencyToken: newConsistencyToken(),
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, dup); err != nil {
			return err
		}
		for _, rt := range s.registry.EpisodeSubrecords() {
			if rt.Singleton {
				continue
			}
			recs, err := s.records.ListFor(ctx, rt.Name, src.ID)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				values := make(map[string]any, len(rec.Values)+1)
				for k, v := range rec.Values {
					values[k] = v
				}
				values["episode_id"] = dup.ID.String()
				if _, err := s.records.Create(ctx, rt.Name, values); err != nil {
					return fmt.Errorf("copy %s: %w", rt.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	serialized, err := s.serialize(ctx, dup, viewer)
	if err != nil {
		return nil, err
	}
	go s.sink.NotifyAdmission(context.Background(), serialized)
	return serialized, nil
}

// ListByTag returns the active episodes on the named list, serialized
// for the viewer. An empty tag lists every active episode; the pseudo
// tag "mine" lists the viewer's personal episodes. A subtag narrows to
// the subteam's list.
func (s *Service) ListByTag(ctx context.Context, tag, subtag string, viewer auth.User) ([]map[string]any, error) {
	var (
		episodes []*Episode
		err      error
	)
	name := tag
	if subtag != "" {
		name = subtag
	}
	switch {
	case name == "":
		episodes, err = s.repo.ListActive(ctx)
	case tag == team.MineTeamName:
		episodes, err = s.repo.ListActiveMine(ctx, viewer.ID)
	default:
		episodes, err = s.repo.ListActiveByTag(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return s.serializeAll(ctx, episodes, viewer)
}

// Serialize renders one episode for the viewer.
func (s *Service) Serialize(ctx context.Context, id uuid.UUID, viewer auth.User) (map[string]any, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.serialize(ctx, e, viewer)
}

// SerializeForPatient renders every episode of a patient for the
// viewer, in admission order.
func (s *Service) SerializeForPatient(ctx context.Context, patientID uuid.UUID, viewer auth.User) ([]map[string]any, error) {
	episodes, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.serializeAll(ctx, episodes, viewer)
}

// EverTagged returns the ids of episodes that have ever carried the
// named tag, archived taggings included. Used by advanced search.
func (s *Service) EverTagged(ctx context.Context, teamName string) ([]uuid.UUID, error) {
	return s.repo.EverTagged(ctx, teamName)
}

// IDsForPatients expands patient ids to all their episode ids. Used by
// advanced search to widen patient-scoped matches.
func (s *Service) IDsForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(patientIDs) == 0 {
		return nil, nil
	}
	return s.repo.IDsForPatients(ctx, patientIDs)
}

// setTagNames makes the episode's tag set equal names. Tags no longer
// wanted are archived, new ones inserted. The pseudo tag "mine" binds
// to the acting user instead of a team; other users' personal tags are
// left untouched.
func (s *Service) setTagNames(ctx context.Context, episodeID uuid.UUID, names []string, userID uuid.UUID) error {
	current, err := s.repo.Taggings(ctx, episodeID)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			want[n] = true
		}
	}

	for _, t := range current {
		if t.UserID != nil && *t.UserID != userID {
			continue
		}
		if want[t.TeamName] {
			delete(want, t.TeamName)
			continue
		}
		if err := s.repo.ArchiveTagging(ctx, t.ID); err != nil {
			return err
		}
	}

	missing := make([]string, 0, len(want))
	for n := range want {
		missing = append(missing, n)
	}
	sort.Strings(missing)

	for _, n := range missing {
		t := &Tagging{ID: uuid.New(), EpisodeID: episodeID}
		if n == team.MineTeamName {
			id := userID
			t.UserID = &id
		} else {
			tm, err := s.teams.Get(ctx, n)
			if err != nil {
				return fmt.Errorf("tag %q: %w", n, err)
			}
			t.TeamID = &tm.ID
		}
		if err := s.repo.AddTagging(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) serializeAll(ctx context.Context, episodes []*Episode, viewer auth.User) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(episodes))
	for _, e := range episodes {
		serialized, err := s.serialize(ctx, e, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, serialized)
	}
	return out, nil
}

// serialize renders the episode fields, its subrecords, the owning
// patient's subrecords, and the tag names visible to the viewer.
func (s *Service) serialize(ctx context.Context, e *Episode, viewer auth.User) (map[string]any, error) {
	out := map[string]any{
		"id":                e.ID,
		"patient_id":        e.PatientID,
		"category":          e.Category,
		"active":            e.Active,
		"date_of_admission": isoDate(e.DateOfAdmission),
		"discharge_date":    isoDate(e.DischargeDate),
		"consistency_token": e.ConsistencyToken,
		"created_at":        e.CreatedAt,
		"updated_at":        e.UpdatedAt,
	}

	episodeSubs, err := s.records.SerializeFor(ctx, schema.ScopeEpisode, e.ID)
	if err != nil {
		return nil, err
	}
	for k, v := range episodeSubs {
		out[k] = v
	}

	patientSubs, err := s.records.SerializeFor(ctx, schema.ScopePatient, e.PatientID)
	if err != nil {
		return nil, err
	}
	for k, v := range patientSubs {
		out[k] = v
	}

	names, err := s.visibleTagNames(ctx, e.ID, viewer)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]bool, len(names))
	for _, n := range names {
		tags[n] = true
	}
	out["tagging"] = []map[string]bool{tags}
	return out, nil
}

// visibleTagNames filters the episode's tags down to what the viewer
// may see: personal tags only for their owner, restricted teams only
// for superusers.
func (s *Service) visibleTagNames(ctx context.Context, episodeID uuid.UUID, viewer auth.User) ([]string, error) {
	taggings, err := s.repo.Taggings(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, t := range taggings {
		if t.UserID != nil {
			if *t.UserID == viewer.ID {
				names = append(names, team.MineTeamName)
			}
			continue
		}
		if t.Restricted && !viewer.IsSuperuser() {
			continue
		}
		names = append(names, t.TeamName)
	}
	sort.Strings(names)
	return names, nil
}

// applyFields copies the episode columns present in an API payload onto
// e. Dates arrive in the wire format and are accepted in ISO form too.
func applyFields(e *Episode, payload map[string]any) error {
	if v, ok := payload["category"].(string); ok && v != "" {
		e.Category = v
	}
	if raw, present := payload["date_of_admission"]; present {
		d, err := parseDate(raw)
		if err != nil {
			return err
		}
		e.DateOfAdmission = d
	}
	if raw, present := payload["discharge_date"]; present {
		d, err := parseDate(raw)
		if err != nil {
			return err
		}
		e.DischargeDate = d
	}
	if v, ok := payload["active"].(bool); ok {
		e.Active = v
	}
	return nil
}

func parseDate(raw any) (*time.Time, error) {
	str, _ := raw.(string)
	if str == "" {
		return nil, nil
	}
	d, err := record.ParseDate(str)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isoDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(record.DateLayoutISO)
}

// taggingFromPayload reads the wire tagging shape, a one-element list
// of name to flag: [{"cardiology": true, "mine": true}]. The second
// return distinguishes an absent entry from an empty one, which clears
// every tag.
func taggingFromPayload(payload map[string]any) ([]string, bool) {
	raw, ok := payload["tagging"].([]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	first, ok := raw[0].(map[string]any)
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(first))
	for name, v := range first {
		if truthy(v) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return false
}
