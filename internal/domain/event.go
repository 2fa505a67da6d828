package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventType classifies an inbound workflow-platform event.
type EventType string

const (
	EventComment        EventType = "comment"
	EventTaskUpdated    EventType = "task_updated"
	EventTaskClosed     EventType = "task_closed"
	EventTaskCanceled   EventType = "task_canceled"
	EventCommentDeleted EventType = "comment_deleted"
	EventOther          EventType = "other"
)

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	switch t {
	case EventComment, EventTaskUpdated, EventTaskClosed, EventTaskCanceled, EventCommentDeleted, EventOther:
		return true
	}
	return false
}

// ParseEventTypeFromString maps an upstream event name to an EventType.
// Unrecognized names fold into EventOther so new upstream event kinds
// never fail ingestion.
func ParseEventTypeFromString(s string) EventType {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return EventOther
	}
	return t
}

// ClosesWorkItem reports whether the event terminates the work item.
func (t EventType) ClosesWorkItem() bool {
	return t == EventTaskClosed || t == EventTaskCanceled
}

// CarriesComments reports whether the event may carry authored comments
// with mentions.
func (t EventType) CarriesComments() bool {
	return t == EventComment || t == EventTaskUpdated
}

// Comment is an authored comment on a work item as delivered by the
// upstream transport, already parsed and signature-verified.
type Comment struct {
	ID                    int64
	Text                  string
	AuthorID              int64
	CreatedAt             time.Time
	MentionedRecipientIDs []int64
}

// Event is a normalized upstream event. The transport adapter tolerates
// unknown and extra fields; only the fields below reach the core.
type Event struct {
	Type          EventType
	WorkItemID    int64
	WorkItemTitle string
	ActorID       int64
	Comments      []Comment
	OccurredAt    time.Time
}

func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: event is nil", ErrValidation)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", ErrValidation, e.Type)
	}
	if e.WorkItemID <= 0 {
		return fmt.Errorf("%w: work item id is required", ErrValidation)
	}
	for i := range e.Comments {
		if e.Comments[i].ID <= 0 {
			return fmt.Errorf("%w: comment id is required", ErrValidation)
		}
	}
	return nil
}
