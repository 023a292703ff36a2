package member

import (
	"github.com/turtacn/KinKeep/pkg/types/common"
)

// EventType names a change to the member list.
type EventType string

const (
	EventMemberCreated  EventType = "member.created"
	EventMemberUpdated  EventType = "member.updated"
	EventMemberDeleted  EventType = "member.deleted"
	EventMemberImported EventType = "member.imported"
)

// Event is published after a member change has been persisted. Member is the
// stored record at that moment; deletions carry no snapshot.
type Event struct {
	common.BaseEvent
	Type     EventType `json:"type"`
	FullName string    `json:"full_name,omitempty"`
	Member   *Member   `json:"member,omitempty"`
}

// NewEvent builds an Event of type t carrying a copy of m.
func NewEvent(t EventType, m *Member) *Event {
	snapshot := m.Clone()
	return &Event{
		BaseEvent: common.NewBaseEvent(m.ID),
		Type:      t,
		FullName:  m.FullName(),
		Member:    &snapshot,
	}
}

// NewDeletedEvent builds a deletion event; only the id survives a delete.
func NewDeletedEvent(id string) *Event {
	return &Event{
		BaseEvent: common.NewBaseEvent(id),
		Type:      EventMemberDeleted,
	}
}
