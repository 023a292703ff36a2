package member

import (
	"regexp"
	"sort"
	"strings"

	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

// GenderTab is the gender filter shown as tabs above the member list.
type GenderTab string

const (
	TabAll    GenderTab = "all"
	TabMale   GenderTab = "male"
	TabFemale GenderTab = "female"
)

// ParseGenderTab accepts all, male, female and their plurals. Empty means all.
func ParseGenderTab(s string) (GenderTab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return TabAll, nil
	case "male", "males":
		return TabMale, nil
	case "female", "females":
		return TabFemale, nil
	}
	return "", pkgerrors.New(pkgerrors.ErrCodeGenderFilterInvalid, "gender filter must be all, male or female").
		WithDetail(s)
}

// Matches reports whether m passes the tab.
func (t GenderTab) Matches(m *Member) bool {
	switch t {
	case TabMale:
		return m.Gender == GenderMale
	case TabFemale:
		return m.Gender == GenderFemale
	}
	return true
}

// MatchesTerm reports whether term occurs, case-insensitively, in m's full
// name or maiden name. An empty term matches everything.
func MatchesTerm(m *Member, term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	if strings.Contains(strings.ToLower(m.FullName()), needle) {
		return true
	}
	return m.MaidenName != "" && strings.Contains(strings.ToLower(m.MaidenName), needle)
}

// Query combines the search box and the gender tab.
type Query struct {
	Term string
	Tab  GenderTab
}

// Apply returns the members that match both the term and the tab, in input order.
func (q Query) Apply(members []Member) []Member {
	tab := q.Tab
	if tab == "" {
		tab = TabAll
	}
	out := make([]Member, 0, len(members))
	for i := range members {
		if MatchesTerm(&members[i], q.Term) && tab.Matches(&members[i]) {
			out = append(out, members[i])
		}
	}
	return out
}

// SortForGrid returns a copy of members ordered newest first by CreatedAt.
func SortForGrid(members []Member) []Member {
	out := append([]Member(nil), members...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// undatedBirth sorts members without a birth date ahead of everyone else.
const undatedBirth = "0000-00-00"

// SortForTimeline returns a copy of members ordered by birth date ascending,
// with undated members first. Dates compare as strings.
func SortForTimeline(members []Member) []Member {
	out := append([]Member(nil), members...)
	key := func(m *Member) string {
		if m.BirthDate == "" {
			return undatedBirth
		}
		return m.BirthDate
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(&out[i]) < key(&out[j])
	})
	return out
}

// datePattern matches a four digit year.
var datePattern = regexp.MustCompile(`^\d{4}$`)

// Year returns the leading four digit year of an ISO-like date, or "".
func Year(date string) string {
	if len(date) >= 4 && datePattern.MatchString(date[:4]) {
		return date[:4]
	}
	return ""
}

// Lifespan formats "1920 - 1999", "1920 - Present" or "Unknown - 1999".
func Lifespan(m *Member) string {
	born := Year(m.BirthDate)
	if born == "" {
		born = "Unknown"
	}
	died := Year(m.DeathDate)
	if died == "" {
		died = "Present"
	}
	return born + " - " + died
}

// Children returns the members whose father or mother is id.
func Children(members []Member, id string) []Member {
	var out []Member
	for i := range members {
		if members[i].IsChildOf(id) {
			out = append(out, members[i])
		}
	}
	return out
}

// FatherCandidates lists members that may be picked as selfID's father:
// anyone male or of unknown gender other than selfID.
func FatherCandidates(members []Member, selfID string) []Member {
	return candidates(members, selfID, GenderMale, GenderUnknown)
}

// MotherCandidates lists members that may be picked as selfID's mother.
func MotherCandidates(members []Member, selfID string) []Member {
	return candidates(members, selfID, GenderFemale, GenderUnknown)
}

// SpouseCandidates lists every member other than selfID.
func SpouseCandidates(members []Member, selfID string) []Member {
	return candidates(members, selfID)
}

func candidates(members []Member, selfID string, genders ...Gender) []Member {
	var out []Member
	for i := range members {
		m := &members[i]
		if m.ID == selfID {
			continue
		}
		if len(genders) > 0 && !containsGender(genders, m.Gender) {
			continue
		}
		out = append(out, *m)
	}
	return out
}

func containsGender(gs []Gender, g Gender) bool {
	for _, x := range gs {
		if x == g {
			return true
		}
	}
	return false
}

// Relatives is the resolved neighbourhood of one member.
type Relatives struct {
	Father   *Member  `json:"father,omitempty"`
	Mother   *Member  `json:"mother,omitempty"`
	Spouse   *Member  `json:"spouse,omitempty"`
	Children []Member `json:"children"`
}

// ResolveRelatives looks up m's father, mother, spouse and children in members.
// Dangling ids resolve to nil.
func ResolveRelatives(members []Member, m *Member) Relatives {
	byID := make(map[string]*Member, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}
	lookup := func(id string) *Member {
		if id == "" {
			return nil
		}
		if found, ok := byID[id]; ok {
			c := found.Clone()
			return &c
		}
		return nil
	}
	children := Children(members, m.ID)
	if children == nil {
		children = []Member{}
	}
	return Relatives{
		Father:   lookup(m.FatherID),
		Mother:   lookup(m.MotherID),
		Spouse:   lookup(m.SpouseID),
		Children: children,
	}
}
