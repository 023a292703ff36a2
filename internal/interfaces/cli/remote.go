package cli

import (
	"context"
	"time"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/pkg/client"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// remoteService implements family.Service against a KinKeep API server.
type remoteService struct {
	c *client.Client
}

// NewRemoteService adapts an API client to family.Service so every command
// works the same against a server as against local storage.
func NewRemoteService(c *client.Client) family.Service {
	return &remoteService{c: c}
}

func (r *remoteService) List(ctx context.Context, input *family.ListInput) (*family.ListResult, error) {
	var opts client.ListOptions
	if input != nil {
		opts = client.ListOptions{Term: input.Term, Gender: input.Gender, View: input.View}
	}
	res, err := r.c.Members().List(ctx, &opts)
	if err != nil {
		return nil, remoteError(err)
	}
	out := &family.ListResult{
		Members: make([]family.MemberSummary, 0, len(res.Members)),
		Total:   res.Total,
		View:    family.View(res.View),
	}
	for i := range res.Members {
		out.Members = append(out.Members, family.MemberSummary{
			Member:   toMember(&res.Members[i].Member),
			Lifespan: res.Members[i].Lifespan,
		})
	}
	return out, nil
}

func (r *remoteService) Get(ctx context.Context, id string) (*member.Member, error) {
	return r.one(r.c.Members().Get(ctx, id))
}

func (r *remoteService) Create(ctx context.Context, draft member.Draft) (*member.Member, error) {
	return r.one(r.c.Members().Create(ctx, toInput(draft)))
}

func (r *remoteService) Update(ctx context.Context, id string, draft member.Draft) (*member.Member, error) {
	return r.one(r.c.Members().Update(ctx, id, toInput(draft)))
}

func (r *remoteService) Delete(ctx context.Context, id string) error {
	return remoteError(r.c.Members().Delete(ctx, id))
}

func (r *remoteService) AddMemory(ctx context.Context, id string, input *family.MemoryInput) (*member.Member, error) {
	return r.one(r.c.Members().AddMemory(ctx, id, &client.MemoryInput{
		Type:    input.Kind,
		Title:   input.Title,
		Content: input.Content,
		Date:    input.Date,
	}))
}

func (r *remoteService) RemoveMemory(ctx context.Context, id, memoryID string) (*member.Member, error) {
	return r.one(r.c.Members().RemoveMemory(ctx, id, memoryID))
}

func (r *remoteService) Relatives(ctx context.Context, id string) (*member.Relatives, error) {
	rel, err := r.c.Members().Relatives(ctx, id)
	if err != nil {
		return nil, remoteError(err)
	}
	return &member.Relatives{
		Father:   toMemberPtr(rel.Father),
		Mother:   toMemberPtr(rel.Mother),
		Spouse:   toMemberPtr(rel.Spouse),
		Children: toMembers(rel.Children),
	}, nil
}

func (r *remoteService) Candidates(ctx context.Context, id string) (*family.Candidates, error) {
	c, err := r.c.Members().Candidates(ctx, id)
	if err != nil {
		return nil, remoteError(err)
	}
	return &family.Candidates{
		Fathers: toMembers(c.Fathers),
		Mothers: toMembers(c.Mothers),
		Spouses: toMembers(c.Spouses),
	}, nil
}

func (r *remoteService) ImportStory(ctx context.Context, story string) (*family.ImportResult, error) {
	res, err := r.c.Stories().Import(ctx, story)
	if err != nil {
		return nil, remoteError(err)
	}
	return &family.ImportResult{Imported: res.Imported, Members: toMembers(res.Members)}, nil
}

// Export downloads the record. The server does not report a member count for
// downloads, so Members is left at zero.
func (r *remoteService) Export(ctx context.Context, format family.ExportFormat) (*family.Export, error) {
	exp, err := r.c.Stories().Export(ctx, string(format))
	if err != nil {
		return nil, remoteError(err)
	}
	return &family.Export{Filename: exp.Filename, ContentType: exp.ContentType, Data: exp.Data}, nil
}

func (r *remoteService) PublishExport(ctx context.Context, format family.ExportFormat) (*family.PublishedExport, error) {
	pub, err := r.c.Stories().Publish(ctx, string(format))
	if err != nil {
		return nil, remoteError(err)
	}
	return &family.PublishedExport{Filename: pub.Filename, URL: pub.URL, Members: pub.Members}, nil
}

func (r *remoteService) one(m *client.Member, err error) (*member.Member, error) {
	if err != nil {
		return nil, remoteError(err)
	}
	out := toMember(m)
	return &out, nil
}

// remoteError turns server error envelopes back into application errors so
// callers can match on codes. Transport failures become ServiceUnavailable.
func remoteError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return errors.New(errors.ErrorCode(apiErr.Code), apiErr.Message).WithDetail(apiErr.Detail)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeTimeout, "request to KinKeep server timed out")
	}
	return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "KinKeep server unreachable")
}

func toMember(m *client.Member) member.Member {
	out := member.Member{
		ID:           m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		MaidenName:   m.MaidenName,
		BirthDate:    m.BirthDate,
		DeathDate:    m.DeathDate,
		Gender:       member.ParseGender(m.Gender),
		Bio:          m.Bio,
		Photo:        m.Photo,
		FatherID:     m.FatherID,
		FatherKind:   member.RelationshipKind(m.FatherType),
		MotherID:     m.MotherID,
		MotherKind:   member.RelationshipKind(m.MotherType),
		SpouseID:     m.SpouseID,
		MarriageDate: m.MarriageDate,
		Memories:     make([]member.Memory, 0, len(m.Memories)),
		CreatedAt:    m.CreatedAt,
	}
	for _, mem := range m.Memories {
		out.Memories = append(out.Memories, member.Memory{
			ID:      mem.ID,
			Kind:    member.ParseMemoryKind(mem.Type),
			Content: mem.Content,
			Date:    mem.Date,
			Title:   mem.Title,
		})
	}
	return out
}

func toMemberPtr(m *client.Member) *member.Member {
	if m == nil {
		return nil
	}
	out := toMember(m)
	return &out
}

func toMembers(ms []client.Member) []member.Member {
	out := make([]member.Member, 0, len(ms))
	for i := range ms {
		out = append(out, toMember(&ms[i]))
	}
	return out
}

func toInput(d member.Draft) *client.MemberInput {
	in := &client.MemberInput{
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		MaidenName:   d.MaidenName,
		BirthDate:    d.BirthDate,
		DeathDate:    d.DeathDate,
		Gender:       string(d.Gender),
		Bio:          d.Bio,
		Photo:        d.Photo,
		FatherID:     d.FatherID,
		FatherType:   string(d.FatherKind),
		MotherID:     d.MotherID,
		MotherType:   string(d.MotherKind),
		SpouseID:     d.SpouseID,
		MarriageDate: d.MarriageDate,
	}
	for _, mem := range d.Memories {
		in.Memories = append(in.Memories, client.Memory{
			ID:      mem.ID,
			Type:    string(mem.Kind),
			Content: mem.Content,
			Date:    mem.Date,
			Title:   mem.Title,
		})
	}
	return in
}

// unixMillis formats a CreatedAt value for display.
func unixMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
