package member

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	prevNow, prevID := nowFunc, newIDFunc
	n := 0
	nowFunc = func() time.Time { return at }
	newIDFunc = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	t.Cleanup(func() {
		nowFunc, newIDFunc = prevNow, prevID
	})
}

func TestParseGender(t *testing.T) {
	assert.Equal(t, GenderMale, ParseGender("male"))
	assert.Equal(t, GenderFemale, ParseGender(" Female "))
	assert.Equal(t, GenderOther, ParseGender("other"))
	assert.Equal(t, GenderUnknown, ParseGender(""))
	assert.Equal(t, GenderUnknown, ParseGender("robot"))
}

func TestParseMemoryKind(t *testing.T) {
	assert.Equal(t, MemoryImage, ParseMemoryKind("IMAGE"))
	assert.Equal(t, MemoryVideo, ParseMemoryKind("video"))
	assert.Equal(t, MemoryText, ParseMemoryKind(""))
	assert.Equal(t, MemoryText, ParseMemoryKind("audio"))
}

func TestRelationshipKind_IsValid(t *testing.T) {
	for _, k := range AllRelationshipKinds {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, RelationshipKind("").IsValid())
	assert.False(t, RelationshipKind("cousin").IsValid())
}

func TestNewMember_AssignsIdentityAndDefaults(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, at)

	m := NewMember(Draft{
		FirstName: "  Ada ",
		LastName:  "Byron",
		FatherID:  "p1",
		Memories: []Memory{
			{Content: "first"},
			{ID: "keep", Kind: MemoryImage, Content: "data:image/png;base64,AAA"},
			{ID: "keep", Content: "duplicate id"},
		},
	})

	assert.Equal(t, "id-1", m.ID)
	assert.Equal(t, at.UnixMilli(), m.CreatedAt)
	assert.Equal(t, "Ada", m.FirstName)
	assert.Equal(t, GenderUnknown, m.Gender)
	assert.Equal(t, RelationBiological, m.FatherKind)
	assert.Empty(t, m.MotherKind, "no mother, no kind")

	require.Len(t, m.Memories, 3)
	assert.Equal(t, "id-2", m.Memories[0].ID)
	assert.Equal(t, MemoryText, m.Memories[0].Kind)
	assert.Equal(t, "keep", m.Memories[1].ID)
	assert.Equal(t, "id-3", m.Memories[2].ID)
}

func TestNewMember_NoMemoriesEncodesEmptyList(t *testing.T) {
	m := NewMember(Draft{FirstName: "A", LastName: "B"})

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"memories":[]`)
	assert.NotContains(t, string(raw), "fatherId")
}

func TestMember_JSONFieldNames(t *testing.T) {
	m := Member{
		ID: "x", FirstName: "A", LastName: "B", MaidenName: "C", Gender: GenderFemale,
		FatherID: "f", FatherKind: RelationStep, MotherID: "m", MotherKind: RelationFoster,
		SpouseID: "s", MarriageDate: "1970-06-01", CreatedAt: 5,
		Memories: []Memory{{ID: "1", Kind: MemoryText, Content: "hi", Title: "T", Date: "1980"}},
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"firstName", "lastName", "maidenName", "fatherId", "fatherType",
		"motherId", "motherType", "spouseId", "marriageDate", "createdAt", "memories", "gender"} {
		assert.Contains(t, generic, key)
	}
	mem := generic["memories"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", mem["type"])
}

func TestMember_ApplyKeepsIdentity(t *testing.T) {
	m := Member{ID: "x", CreatedAt: 42, FirstName: "Old", LastName: "Name", Bio: "bio"}

	m.Apply(Draft{FirstName: "New", LastName: "Name", Gender: GenderMale})

	assert.Equal(t, "x", m.ID)
	assert.Equal(t, int64(42), m.CreatedAt)
	assert.Equal(t, "New", m.FirstName)
	assert.Empty(t, m.Bio)
	assert.NotNil(t, m.Memories)
}

func TestMember_ApplyMemories(t *testing.T) {
	m := Member{ID: "x", FirstName: "A", LastName: "B", Memories: []Memory{{ID: "1", Kind: MemoryText, Content: "kept"}}}

	m.Apply(Draft{FirstName: "A", LastName: "B", Bio: "new bio"})
	require.Len(t, m.Memories, 1)
	assert.Equal(t, "kept", m.Memories[0].Content)

	m.Apply(Draft{FirstName: "A", LastName: "B", Memories: []Memory{}})
	assert.Empty(t, m.Memories)
	assert.NotNil(t, m.Memories)
}

func TestMember_ToDraftRoundTrip(t *testing.T) {
	m := Member{ID: "x", FirstName: "A", LastName: "B", SpouseID: "s", Memories: []Memory{{ID: "1", Kind: MemoryText}}}
	d := m.ToDraft()

	d.Memories[0].Content = "edited"
	assert.Empty(t, m.Memories[0].Content, "draft must not alias the member")
	assert.Equal(t, "s", d.SpouseID)
}

func TestDraft_Validate(t *testing.T) {
	cases := []struct {
		name  string
		draft Draft
		ok    bool
	}{
		{"minimal", Draft{FirstName: "A", LastName: "B"}, true},
		{"full dates", Draft{FirstName: "A", LastName: "B", BirthDate: "1950-04-12", DeathDate: "2001", MarriageDate: "1975-06"}, true},
		{"blank first", Draft{FirstName: "  ", LastName: "B"}, false},
		{"blank last", Draft{FirstName: "A"}, false},
		{"bad gender", Draft{FirstName: "A", LastName: "B", Gender: "robot"}, false},
		{"bad kind", Draft{FirstName: "A", LastName: "B", FatherKind: "uncle"}, false},
		{"free-form dates", Draft{FirstName: "A", LastName: "B", BirthDate: "12/04/1950", DeathDate: "circa 2001"}, true},
		{"bad memory kind", Draft{FirstName: "A", LastName: "B", Memories: []Memory{{Kind: "audio"}}}, false},
		{"free-form memory date", Draft{FirstName: "A", LastName: "B", Memories: []Memory{{Date: "yesterday"}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.draft.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMemberInvalid))
		})
	}
}

func TestToday(t *testing.T) {
	freezeClock(t, time.Date(2023, 11, 5, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2023-11-05", Today())
}

func TestEvents(t *testing.T) {
	m := Member{ID: "x", FirstName: "A", LastName: "B", Memories: []Memory{{ID: "1", Content: "c"}}}

	e := NewEvent(EventMemberCreated, &m)
	assert.Equal(t, "x", e.AggregateID())
	assert.Equal(t, "A B", e.FullName)
	require.NotNil(t, e.Member)
	assert.Equal(t, "x", e.Member.ID)

	m.Memories[0].Content = "changed"
	assert.Equal(t, "c", e.Member.Memories[0].Content, "snapshot must not alias the member")

	d := NewDeletedEvent("y")
	assert.Equal(t, EventMemberDeleted, d.Type)
	assert.Equal(t, "y", d.AggregateID())
	assert.Nil(t, d.Member)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"member"`)
}
