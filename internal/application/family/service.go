// Package family provides the application-level service for the family
// record. It sits between the HTTP and CLI surfaces and the member store,
// adding validation, views, story import, export and change events.
package family

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/turtacn/KinKeep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KinKeep/internal/intelligence/storyparser"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// Service defines the operations exposed to the HTTP and CLI surfaces.
type Service interface {
	List(ctx context.Context, input *ListInput) (*ListResult, error)
	Get(ctx context.Context, id string) (*member.Member, error)
	Create(ctx context.Context, draft member.Draft) (*member.Member, error)
	Update(ctx context.Context, id string, draft member.Draft) (*member.Member, error)
	Delete(ctx context.Context, id string) error

	AddMemory(ctx context.Context, id string, input *MemoryInput) (*member.Member, error)
	RemoveMemory(ctx context.Context, id, memoryID string) (*member.Member, error)

	Relatives(ctx context.Context, id string) (*member.Relatives, error)
	Candidates(ctx context.Context, id string) (*Candidates, error)

	ImportStory(ctx context.Context, story string) (*ImportResult, error)
	Export(ctx context.Context, format ExportFormat) (*Export, error)
	PublishExport(ctx context.Context, format ExportFormat) (*PublishedExport, error)
}

// View selects the ordering of a member list.
type View string

const (
	ViewGrid     View = "grid"
	ViewTimeline View = "timeline"
)

// ParseView accepts grid and timeline. Empty means grid.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewGrid:
		return ViewGrid, nil
	case ViewTimeline:
		return ViewTimeline, nil
	}
	return "", errors.InvalidParam("view must be grid or timeline").WithDetail(s)
}

// ListInput contains the search box, gender tab and view of a listing.
type ListInput struct {
	Term   string
	Gender string
	View   string
}

// ListResult is a filtered, ordered member list. Total counts every stored
// member before filtering.
type ListResult struct {
	Members []MemberSummary `json:"members"`
	Total   int             `json:"total"`
	View    View            `json:"view"`
}

// MemberSummary is a member with its computed lifespan label.
type MemberSummary struct {
	member.Member
	Lifespan string `json:"lifespan"`
}

// MemoryInput describes a memory to attach to a member.
type MemoryInput struct {
	Kind    string
	Title   string
	Content string
	Date    string
}

// Candidates are the members that may be picked for each relationship field.
type Candidates struct {
	Fathers []member.Member `json:"fathers"`
	Mothers []member.Member `json:"mothers"`
	Spouses []member.Member `json:"spouses"`
}

// ImportResult reports the members added by a story import.
type ImportResult struct {
	Imported int             `json:"imported"`
	Members  []member.Member `json:"members"`
}

// EventPublisher receives member change events after they are persisted.
type EventPublisher interface {
	Publish(ctx context.Context, evt *member.Event) error
}

// ExportSink stores an export and returns a link to it.
type ExportSink interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *member.Event) error { return nil }

// Option configures the service.
type Option func(*serviceImpl)

// WithParser enables story import.
func WithParser(p storyparser.Parser) Option {
	return func(s *serviceImpl) { s.parser = p }
}

// WithPublisher sends change events to p.
func WithPublisher(p EventPublisher) Option {
	return func(s *serviceImpl) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics records operation metrics in m.
func WithMetrics(m *prommetrics.AppMetrics) Option {
	return func(s *serviceImpl) { s.metrics = m }
}

// WithExportSink enables PublishExport.
func WithExportSink(sink ExportSink) Option {
	return func(s *serviceImpl) { s.sink = sink }
}

type serviceImpl struct {
	store     *member.Store
	parser    storyparser.Parser
	publisher EventPublisher
	sink      ExportSink
	metrics   *prommetrics.AppMetrics
	logger    logging.Logger
	importing atomic.Bool
}

// NewService creates a new family service over store.
func NewService(store *member.Store, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		store:     store,
		publisher: nopPublisher{},
		logger:    logger.Named("family_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) List(ctx context.Context, input *ListInput) (*ListResult, error) {
	if input == nil {
		input = &ListInput{}
	}
	tab, err := member.ParseGenderTab(input.Gender)
	if err != nil {
		return nil, err
	}
	view, err := ParseView(input.View)
	if err != nil {
		return nil, err
	}

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	filtered := member.Query{Term: input.Term, Tab: tab}.Apply(all)
	if view == ViewTimeline {
		filtered = member.SortForTimeline(filtered)
	} else {
		filtered = member.SortForGrid(filtered)
	}

	out := make([]MemberSummary, len(filtered))
	for i := range filtered {
		out[i] = MemberSummary{Member: filtered[i], Lifespan: member.Lifespan(&filtered[i])}
	}
	return &ListResult{Members: out, Total: len(all), View: view}, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (*member.Member, error) {
	if id == "" {
		return nil, errors.InvalidParam("member id is required")
	}
	return s.store.Get(ctx, id)
}

func (s *serviceImpl) Create(ctx context.Context, draft member.Draft) (*member.Member, error) {
	if err := draft.Validate(); err != nil {
		s.metrics.RecordMemberOperation("create", err)
		return nil, err
	}

	m := member.NewMember(draft)
	var size int
	err := s.timed("add", func() error {
		var aerr error
		size, aerr = s.store.AddChecked(ctx, m, func(all []member.Member) error {
			return checkRelations(all, "", &draft)
		})
		return aerr
	})
	s.metrics.RecordMemberOperation("create", err)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeRelationInvalid) {
			s.logger.Error("failed to create member", logging.Err(err))
		}
		return nil, err
	}
	s.metrics.SetMemberCount(size)
	s.logger.Info("member created", logging.String("id", m.ID), logging.String("name", m.FullName()))
	s.publish(ctx, member.NewEvent(member.EventMemberCreated, &m))
	return &m, nil
}

func (s *serviceImpl) Update(ctx context.Context, id string, draft member.Draft) (*member.Member, error) {
	if id == "" {
		return nil, errors.InvalidParam("member id is required")
	}
	if err := draft.Validate(); err != nil {
		s.metrics.RecordMemberOperation("update", err)
		return nil, err
	}
	return s.modify(ctx, "update", id, func(all []member.Member, m *member.Member) error {
		if err := checkRelations(all, id, &draft); err != nil {
			return err
		}
		m.Apply(draft)
		return nil
	})
}

func (s *serviceImpl) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.InvalidParam("member id is required")
	}
	var found bool
	err := s.timed("delete", func() error {
		var derr error
		found, derr = s.store.Delete(ctx, id)
		return derr
	})
	if err == nil && !found {
		err = memberNotFound(id)
	}
	s.metrics.RecordMemberOperation("delete", err)
	if err != nil {
		return err
	}
	s.logger.Info("member deleted", logging.String("id", id))
	s.publish(ctx, member.NewDeletedEvent(id))
	return nil
}

func (s *serviceImpl) AddMemory(ctx context.Context, id string, input *MemoryInput) (*member.Member, error) {
	if input == nil || strings.TrimSpace(input.Content) == "" {
		return nil, errors.New(errors.ErrCodeMemberInvalid, "memory content is required")
	}
	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = member.Today()
	}

	mem := member.Memory{
		ID:      member.NewID(),
		Kind:    member.ParseMemoryKind(input.Kind),
		Title:   strings.TrimSpace(input.Title),
		Content: input.Content,
		Date:    date,
	}
	return s.modify(ctx, "add_memory", id, func(_ []member.Member, m *member.Member) error {
		m.Memories = append(m.Memories, mem)
		return nil
	})
}

func (s *serviceImpl) RemoveMemory(ctx context.Context, id, memoryID string) (*member.Member, error) {
	return s.modify(ctx, "remove_memory", id, func(_ []member.Member, m *member.Member) error {
		kept := make([]member.Memory, 0, len(m.Memories))
		for _, mem := range m.Memories {
			if mem.ID != memoryID {
				kept = append(kept, mem)
			}
		}
		if len(kept) == len(m.Memories) {
			return errors.New(errors.ErrCodeMemoryNotFound, "memory not found").WithDetail("id=" + memoryID)
		}
		m.Memories = kept
		return nil
	})
}

func (s *serviceImpl) Relatives(ctx context.Context, id string) (*member.Relatives, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	m := find(all, id)
	if m == nil {
		return nil, memberNotFound(id)
	}
	rel := member.ResolveRelatives(all, m)
	return &rel, nil
}

// Candidates lists relationship choices for the member id. An empty id
// means a member that has not been created yet.
func (s *serviceImpl) Candidates(ctx context.Context, id string) (*Candidates, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if id != "" && find(all, id) == nil {
		return nil, memberNotFound(id)
	}
	return &Candidates{
		Fathers: nonNil(member.FatherCandidates(all, id)),
		Mothers: nonNil(member.MotherCandidates(all, id)),
		Spouses: nonNil(member.SpouseCandidates(all, id)),
	}, nil
}

// ImportStory asks the parser for the people in story and appends them all
// in one write. Only one import runs at a time. A parser failure adds nothing.
func (s *serviceImpl) ImportStory(ctx context.Context, story string) (*ImportResult, error) {
	if s.parser == nil {
		return nil, errors.New(errors.ErrCodeImportDisabled, "story import is not configured")
	}
	if strings.TrimSpace(story) == "" {
		return nil, errors.New(errors.ErrCodeStoryEmpty, "story is empty")
	}
	if !s.importing.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrCodeImportInProgress, "a story import is already running")
	}
	defer s.importing.Store(false)

	start := time.Now()
	fragments, err := s.parser.Parse(ctx, story)
	if err != nil {
		s.metrics.RecordStoryImport(time.Since(start), 0, err)
		s.logger.Warn("story import failed", logging.Int("story_bytes", len(story)), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeImportFailed, "failed to parse story, please try again")
	}

	members := storyparser.ToMembers(fragments)
	if len(members) > 0 {
		err = s.timed("add_all", func() error { return s.store.AddAll(ctx, members) })
	}
	s.metrics.RecordStoryImport(time.Since(start), len(members), err)
	if err != nil {
		s.logger.Error("failed to store imported members", logging.Int("count", len(members)), logging.Err(err))
		return nil, err
	}

	s.logger.Info("story imported", logging.Int("members", len(members)), logging.Duration("took", time.Since(start)))
	for i := range members {
		s.publish(ctx, member.NewEvent(member.EventMemberImported, &members[i]))
	}
	return &ImportResult{Imported: len(members), Members: members}, nil
}

// modify applies fn to the stored member id within one store write cycle and
// publishes the update.
func (s *serviceImpl) modify(ctx context.Context, op, id string, fn func(all []member.Member, m *member.Member) error) (*member.Member, error) {
	var stored *member.Member
	err := s.timed("update", func() error {
		var merr error
		stored, merr = s.store.Modify(ctx, id, fn)
		return merr
	})
	s.metrics.RecordMemberOperation(op, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("member updated", logging.String("id", id), logging.String("operation", op))
	s.publish(ctx, member.NewEvent(member.EventMemberUpdated, stored))
	return stored, nil
}

func (s *serviceImpl) loadAll(ctx context.Context) ([]member.Member, error) {
	var all []member.Member
	err := s.timed("load", func() error {
		var lerr error
		all, lerr = s.store.GetAll(ctx)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SetMemberCount(len(all))
	return all, nil
}

func (s *serviceImpl) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordStorageOperation(op, time.Since(start))
	return err
}

// publish is best effort: the change is already stored.
func (s *serviceImpl) publish(ctx context.Context, evt *member.Event) {
	err := s.publisher.Publish(ctx, evt)
	s.metrics.RecordEventPublished(string(evt.Type), err)
	if err != nil {
		s.logger.Warn("failed to publish member event",
			logging.String("type", string(evt.Type)), logging.String("id", evt.AggregateID()), logging.Err(err))
	}
}

// checkRelations verifies that every relationship in d points at another
// stored member.
func checkRelations(all []member.Member, selfID string, d *member.Draft) error {
	for field, target := range map[string]string{
		"fatherId": d.FatherID, "motherId": d.MotherID, "spouseId": d.SpouseID,
	} {
		if target == "" {
			continue
		}
		if target == selfID {
			return errors.New(errors.ErrCodeRelationInvalid, "a member cannot be related to themselves").
				WithDetail(field)
		}
		if find(all, target) == nil {
			return errors.New(errors.ErrCodeRelationInvalid, "related member does not exist").
				WithDetail(field + "=" + target)
		}
	}
	return nil
}

func find(all []member.Member, id string) *member.Member {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}

func memberNotFound(id string) error {
	return errors.New(errors.ErrCodeMemberNotFound, "member not found").WithDetail("id=" + id)
}

func nonNil(ms []member.Member) []member.Member {
	if ms == nil {
		return []member.Member{}
	}
	return ms
}
