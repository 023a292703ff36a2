package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Memory is a story, photo or video attached to a member.
type Memory struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Date    string `json:"date,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Member is one person in the family record as the API returns it.
// CreatedAt is Unix milliseconds.
type Member struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	MaidenName   string   `json:"maidenName,omitempty"`
	BirthDate    string   `json:"birthDate,omitempty"`
	DeathDate    string   `json:"deathDate,omitempty"`
	Gender       string   `json:"gender"`
	Bio          string   `json:"bio,omitempty"`
	Photo        string   `json:"photo,omitempty"`
	FatherID     string   `json:"fatherId,omitempty"`
	FatherType   string   `json:"fatherType,omitempty"`
	MotherID     string   `json:"motherId,omitempty"`
	MotherType   string   `json:"motherType,omitempty"`
	SpouseID     string   `json:"spouseId,omitempty"`
	MarriageDate string   `json:"marriageDate,omitempty"`
	Memories     []Memory `json:"memories"`
	CreatedAt    int64    `json:"createdAt"`
}

// FullName is "First Last".
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// MemberInput is the body of create and update calls. Update replaces every
// field, so send the complete member.
type MemberInput struct {
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	MaidenName   string   `json:"maidenName,omitempty"`
	BirthDate    string   `json:"birthDate,omitempty"`
	DeathDate    string   `json:"deathDate,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Photo        string   `json:"photo,omitempty"`
	FatherID     string   `json:"fatherId,omitempty"`
	FatherType   string   `json:"fatherType,omitempty"`
	MotherID     string   `json:"motherId,omitempty"`
	MotherType   string   `json:"motherType,omitempty"`
	SpouseID     string   `json:"spouseId,omitempty"`
	MarriageDate string   `json:"marriageDate,omitempty"`
	Memories     []Memory `json:"memories,omitempty"`
}

// ListOptions filters a member listing. Gender is all, male or female.
type ListOptions struct {
	Term   string
	Gender string
	View   string
}

func (o *ListOptions) values() url.Values {
	q := url.Values{}
	if o == nil {
		return q
	}
	if o.Term != "" {
		q.Set("q", o.Term)
	}
	if o.Gender != "" {
		q.Set("gender", o.Gender)
	}
	if o.View != "" {
		q.Set("view", o.View)
	}
	return q
}

// MemberSummary is a member with its display lifespan ("1920 - 1999").
type MemberSummary struct {
	Member
	Lifespan string `json:"lifespan"`
}

// ListResult is one page of a listing. Total counts the unfiltered record.
type ListResult struct {
	Members []MemberSummary `json:"members"`
	Total   int             `json:"total"`
	View    string          `json:"view"`
}

// Relatives is the resolved neighbourhood of one member.
type Relatives struct {
	Father   *Member  `json:"father,omitempty"`
	Mother   *Member  `json:"mother,omitempty"`
	Spouse   *Member  `json:"spouse,omitempty"`
	Children []Member `json:"children"`
}

// Candidates lists who may be chosen as father, mother or spouse.
type Candidates struct {
	Fathers []Member `json:"fathers"`
	Mothers []Member `json:"mothers"`
	Spouses []Member `json:"spouses"`
}

// MemoryInput is the body of an add-memory call. Date defaults to today on
// the server.
type MemoryInput struct {
	Type    string `json:"type,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Date    string `json:"date,omitempty"`
}

// MembersClient provides member and memory operations
type MembersClient struct {
	client *Client
}

func memberPath(id string, rest ...string) string {
	parts := append([]string{"/members", url.PathEscape(id)}, rest...)
	return strings.Join(parts, "/")
}

// List returns members matching opts in the requested view.
func (m *MembersClient) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	var res ListResult
	if err := m.client.do(ctx, http.MethodGet, "/members", opts.values(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Timeline returns members ordered by birth date.
func (m *MembersClient) Timeline(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	var res ListResult
	if err := m.client.do(ctx, http.MethodGet, "/timeline", opts.values(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *MembersClient) Get(ctx context.Context, id string) (*Member, error) {
	var out Member
	if err := m.client.do(ctx, http.MethodGet, memberPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MembersClient) Create(ctx context.Context, in *MemberInput) (*Member, error) {
	var out Member
	if err := m.client.do(ctx, http.MethodPost, "/members", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MembersClient) Update(ctx context.Context, id string, in *MemberInput) (*Member, error) {
	var out Member
	if err := m.client.do(ctx, http.MethodPut, memberPath(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a member. The server clears references to it from others.
func (m *MembersClient) Delete(ctx context.Context, id string) error {
	return m.client.do(ctx, http.MethodDelete, memberPath(id), nil, nil, nil)
}

func (m *MembersClient) Relatives(ctx context.Context, id string) (*Relatives, error) {
	var out Relatives
	if err := m.client.do(ctx, http.MethodGet, memberPath(id, "relatives"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Candidates returns relationship candidates for id; an empty id means a
// member that does not exist yet.
func (m *MembersClient) Candidates(ctx context.Context, id string) (*Candidates, error) {
	q := url.Values{}
	if id != "" {
		q.Set("member_id", id)
	}
	var out Candidates
	if err := m.client.do(ctx, http.MethodGet, "/candidates", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MembersClient) AddMemory(ctx context.Context, id string, in *MemoryInput) (*Member, error) {
	var out Member
	if err := m.client.do(ctx, http.MethodPost, memberPath(id, "memories"), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MembersClient) RemoveMemory(ctx context.Context, id, memoryID string) (*Member, error) {
	var out Member
	if err := m.client.do(ctx, http.MethodDelete, memberPath(id, "memories", url.PathEscape(memoryID)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
