// Package member holds the family member aggregate, the record store that
// owns the persisted member list, and the pure view functions (search, gender
// tabs, grid and timeline ordering) built on top of it.
package member

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

// Gender of a family member. Unknown is the default.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// IsValid reports whether g is one of the four known genders.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// ParseGender maps s to a Gender, case-insensitively. Anything unrecognised,
// including the empty string, becomes GenderUnknown.
func ParseGender(s string) Gender {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if g.IsValid() {
		return g
	}
	return GenderUnknown
}

// RelationshipKind qualifies a parent link.
type RelationshipKind string

const (
	RelationBiological RelationshipKind = "biological"
	RelationAdoptive   RelationshipKind = "adoptive"
	RelationStep       RelationshipKind = "step"
	RelationFoster     RelationshipKind = "foster"
	RelationGodparent  RelationshipKind = "godparent"
	RelationOther      RelationshipKind = "other"
)

// AllRelationshipKinds lists the accepted kinds in display order.
var AllRelationshipKinds = []RelationshipKind{
	RelationBiological, RelationAdoptive, RelationStep, RelationFoster, RelationGodparent, RelationOther,
}

// IsValid reports whether k is a known kind. The empty kind is not valid.
func (k RelationshipKind) IsValid() bool {
	for _, known := range AllRelationshipKinds {
		if k == known {
			return true
		}
	}
	return false
}

// MemoryKind is the media type of a Memory.
type MemoryKind string

const (
	MemoryText  MemoryKind = "text"
	MemoryImage MemoryKind = "image"
	MemoryVideo MemoryKind = "video"
)

// IsValid reports whether k is text, image or video.
func (k MemoryKind) IsValid() bool {
	switch k {
	case MemoryText, MemoryImage, MemoryVideo:
		return true
	}
	return false
}

// ParseMemoryKind maps s to a MemoryKind, defaulting to text.
func ParseMemoryKind(s string) MemoryKind {
	k := MemoryKind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsValid() {
		return k
	}
	return MemoryText
}

// Memory is a story, photo or video attached to a member. Content is plain
// text for text memories and an opaque data URL or link otherwise.
type Memory struct {
	ID      string     `json:"id"`
	Kind    MemoryKind `json:"type"`
	Content string     `json:"content"`
	Date    string     `json:"date,omitempty"`
	Title   string     `json:"title,omitempty"`
}

// Member is one person in the family record. Dates are kept as the ISO-like
// strings the user entered ("1950", "1950-04", "1950-04-12") and CreatedAt is
// Unix milliseconds.
type Member struct {
	ID           string           `json:"id"`
	FirstName    string           `json:"firstName"`
	LastName     string           `json:"lastName"`
	MaidenName   string           `json:"maidenName,omitempty"`
	BirthDate    string           `json:"birthDate,omitempty"`
	DeathDate    string           `json:"deathDate,omitempty"`
	Gender       Gender           `json:"gender"`
	Bio          string           `json:"bio,omitempty"`
	Photo        string           `json:"photo,omitempty"`
	FatherID     string           `json:"fatherId,omitempty"`
	FatherKind   RelationshipKind `json:"fatherType,omitempty"`
	MotherID     string           `json:"motherId,omitempty"`
	MotherKind   RelationshipKind `json:"motherType,omitempty"`
	SpouseID     string           `json:"spouseId,omitempty"`
	MarriageDate string           `json:"marriageDate,omitempty"`
	Memories     []Memory         `json:"memories"`
	CreatedAt    int64            `json:"createdAt"`
}

// FullName is "First Last".
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// Clone returns a deep copy of m.
func (m *Member) Clone() Member {
	c := *m
	if m.Memories != nil {
		c.Memories = make([]Memory, len(m.Memories))
		copy(c.Memories, m.Memories)
	}
	return c
}

// IsChildOf reports whether id is m's father or mother.
func (m *Member) IsChildOf(id string) bool {
	return id != "" && (m.FatherID == id || m.MotherID == id)
}

// clearReferencesTo empties every relationship field that points at id and
// reports whether anything changed. Relationship kinds are left as they are.
func (m *Member) clearReferencesTo(id string) bool {
	changed := false
	if m.FatherID == id {
		m.FatherID = ""
		changed = true
	}
	if m.MotherID == id {
		m.MotherID = ""
		changed = true
	}
	if m.SpouseID == id {
		m.SpouseID = ""
		changed = true
	}
	return changed
}

// Document is the single persisted value holding every member.
type Document struct {
	Members []Member `json:"members"`
}

// NewDocument returns an empty document whose member list encodes as [].
func NewDocument() *Document {
	return &Document{Members: []Member{}}
}

// indexOf returns the position of id in d.Members or -1.
func (d *Document) indexOf(id string) int {
	for i := range d.Members {
		if d.Members[i].ID == id {
			return i
		}
	}
	return -1
}

// Draft carries the user-editable fields of a member. It is what forms, the
// CLI and the story importer produce before an id and timestamp are assigned.
type Draft struct {
	FirstName    string           `json:"firstName"`
	LastName     string           `json:"lastName"`
	MaidenName   string           `json:"maidenName,omitempty"`
	BirthDate    string           `json:"birthDate,omitempty"`
	DeathDate    string           `json:"deathDate,omitempty"`
	Gender       Gender           `json:"gender,omitempty"`
	Bio          string           `json:"bio,omitempty"`
	Photo        string           `json:"photo,omitempty"`
	FatherID     string           `json:"fatherId,omitempty"`
	FatherKind   RelationshipKind `json:"fatherType,omitempty"`
	MotherID     string           `json:"motherId,omitempty"`
	MotherKind   RelationshipKind `json:"motherType,omitempty"`
	SpouseID     string           `json:"spouseId,omitempty"`
	MarriageDate string           `json:"marriageDate,omitempty"`
	Memories     []Memory         `json:"memories,omitempty"`
}

// Validate checks the fields a person filling in a form must get right.
// Dates are free text and pass through unchecked. Relationship targets are
// checked by the application layer, which can see the other members.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" {
		return pkgerrors.New(pkgerrors.ErrCodeMemberInvalid, "first name is required")
	}
	if strings.TrimSpace(d.LastName) == "" {
		return pkgerrors.New(pkgerrors.ErrCodeMemberInvalid, "last name is required")
	}
	if d.Gender != "" && !d.Gender.IsValid() {
		return pkgerrors.New(pkgerrors.ErrCodeMemberInvalid, "invalid gender").WithDetail(string(d.Gender))
	}
	for field, kind := range map[string]RelationshipKind{"fatherType": d.FatherKind, "motherType": d.MotherKind} {
		if kind != "" && !kind.IsValid() {
			return pkgerrors.New(pkgerrors.ErrCodeMemberInvalid, "invalid relationship kind").
				WithDetail(field + "=" + string(kind))
		}
	}
	for _, mem := range d.Memories {
		if mem.Kind != "" && !mem.Kind.IsValid() {
			return pkgerrors.New(pkgerrors.ErrCodeMemberInvalid, "invalid memory type").WithDetail(string(mem.Kind))
		}
	}
	return nil
}

// Indirections for deterministic tests.
var (
	nowFunc   = time.Now
	newIDFunc = func() string { return uuid.New().String() }
)

// NewID returns a fresh member or memory identifier.
func NewID() string {
	return newIDFunc()
}

// Today returns the current date as YYYY-MM-DD, the default memory date.
func Today() string {
	return nowFunc().Format("2006-01-02")
}

// NewMember builds a Member from d with a fresh id, the current time as
// CreatedAt and gender defaulted to unknown. A parent kind defaults to
// biological when the parent is set and the kind is not.
func NewMember(d Draft) Member {
	m := Member{
		ID:           NewID(),
		CreatedAt:    nowFunc().UnixMilli(),
		Memories:     NormalizeMemories(d.Memories),
		Gender:       ParseGender(string(d.Gender)),
		FirstName:    strings.TrimSpace(d.FirstName),
		LastName:     strings.TrimSpace(d.LastName),
		MaidenName:   strings.TrimSpace(d.MaidenName),
		BirthDate:    d.BirthDate,
		DeathDate:    d.DeathDate,
		Bio:          d.Bio,
		Photo:        d.Photo,
		FatherID:     d.FatherID,
		FatherKind:   d.FatherKind,
		MotherID:     d.MotherID,
		MotherKind:   d.MotherKind,
		SpouseID:     d.SpouseID,
		MarriageDate: d.MarriageDate,
	}
	m.defaultParentKinds()
	return m
}

// Apply overwrites every editable field of m with the values in d, keeping
// ID and CreatedAt. A nil d.Memories leaves the memories alone; an empty one
// clears them.
func (m *Member) Apply(d Draft) {
	m.FirstName = strings.TrimSpace(d.FirstName)
	m.LastName = strings.TrimSpace(d.LastName)
	m.MaidenName = strings.TrimSpace(d.MaidenName)
	m.BirthDate = d.BirthDate
	m.DeathDate = d.DeathDate
	m.Gender = ParseGender(string(d.Gender))
	m.Bio = d.Bio
	m.Photo = d.Photo
	m.FatherID = d.FatherID
	m.FatherKind = d.FatherKind
	m.MotherID = d.MotherID
	m.MotherKind = d.MotherKind
	m.SpouseID = d.SpouseID
	m.MarriageDate = d.MarriageDate
	if d.Memories != nil {
		m.Memories = NormalizeMemories(d.Memories)
	} else {
		m.Memories = NormalizeMemories(m.Memories)
	}
	m.defaultParentKinds()
}

// ToDraft returns the editable fields of m.
func (m *Member) ToDraft() Draft {
	c := m.Clone()
	return Draft{
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		MaidenName:   c.MaidenName,
		BirthDate:    c.BirthDate,
		DeathDate:    c.DeathDate,
		Gender:       c.Gender,
		Bio:          c.Bio,
		Photo:        c.Photo,
		FatherID:     c.FatherID,
		FatherKind:   c.FatherKind,
		MotherID:     c.MotherID,
		MotherKind:   c.MotherKind,
		SpouseID:     c.SpouseID,
		MarriageDate: c.MarriageDate,
		Memories:     c.Memories,
	}
}

func (m *Member) defaultParentKinds() {
	if m.FatherID != "" && m.FatherKind == "" {
		m.FatherKind = RelationBiological
	}
	if m.MotherID != "" && m.MotherKind == "" {
		m.MotherKind = RelationBiological
	}
}

// NormalizeMemories returns a copy of ms in which every memory has a kind and
// an id that is unique within the slice. The result is never nil.
func NormalizeMemories(ms []Memory) []Memory {
	out := make([]Memory, 0, len(ms))
	seen := make(map[string]struct{}, len(ms))
	for _, mem := range ms {
		if _, dup := seen[mem.ID]; mem.ID == "" || dup {
			mem.ID = NewID()
		}
		seen[mem.ID] = struct{}{}
		mem.Kind = ParseMemoryKind(string(mem.Kind))
		out = append(out, mem)
	}
	return out
}
