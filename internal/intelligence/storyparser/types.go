// Package storyparser turns free-text family stories into member drafts by
// asking a hosted Gemini model for JSON that follows a fixed schema.
package storyparser

import (
	"context"
	"strings"

	"github.com/turtacn/KinKeep/internal/domain/member"
)

// Parser extracts member fragments from a story. On any failure it returns
// an empty, non-nil slice together with the error.
type Parser interface {
	Parse(ctx context.Context, story string) ([]Fragment, error)
}

// Fragment is one person as described by the model.
type Fragment struct {
	FirstName    string           `json:"firstName"`
	LastName     string           `json:"lastName"`
	Gender       string           `json:"gender"`
	Bio          string           `json:"bio,omitempty"`
	BirthDate    string           `json:"birthDate,omitempty"`
	MarriageDate string           `json:"marriageDate,omitempty"`
	Memories     []MemoryFragment `json:"memories,omitempty"`
}

type MemoryFragment struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Date    string `json:"date,omitempty"`
}

type storyResult struct {
	Members []Fragment `json:"members"`
}

// ToMembers builds full member records from fragments, field by field. Each
// member and memory gets a fresh id, gender defaults to unknown and memories
// default to empty. No deduplication against existing members takes place.
func ToMembers(fragments []Fragment) []member.Member {
	out := make([]member.Member, 0, len(fragments))
	for _, f := range fragments {
		memories := make([]member.Memory, 0, len(f.Memories))
		for _, mf := range f.Memories {
			memories = append(memories, member.Memory{
				Kind:    member.ParseMemoryKind(mf.Type),
				Content: mf.Content,
				Title:   strings.TrimSpace(mf.Title),
				Date:    mf.Date,
			})
		}
		out = append(out, member.NewMember(member.Draft{
			FirstName:    f.FirstName,
			LastName:     f.LastName,
			Gender:       member.Gender(f.Gender),
			Bio:          f.Bio,
			BirthDate:    f.BirthDate,
			MarriageDate: f.MarriageDate,
			Memories:     memories,
		}))
	}
	return out
}
