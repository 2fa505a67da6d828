package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
)

// EventMessage is the broker payload for a normalized tracker event.
type EventMessage struct {
	CorrelationID string           `json:"correlationId,omitempty"`
	EventType     string           `json:"eventType"`
	WorkItemID    int64            `json:"workItemId"`
	WorkItemTitle string           `json:"workItemTitle,omitempty"`
	ActorID       int64            `json:"actorId,omitempty"`
	Comments      []CommentMessage `json:"comments,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

// CommentMessage is the broker form of a single comment.
type CommentMessage struct {
	ID                    int64     `json:"id"`
	Text                  string    `json:"text,omitempty"`
	AuthorID              int64     `json:"authorId"`
	CreatedAt             time.Time `json:"createdAt"`
	MentionedRecipientIDs []int64   `json:"mentionedRecipientIds,omitempty"`
}

func (m EventMessage) Validate() error {
	if m.WorkItemID <= 0 {
		return fmt.Errorf("workItemId is required")
	}
	if strings.TrimSpace(m.EventType) == "" {
		return fmt.Errorf("eventType is required")
	}
	for i, c := range m.Comments {
		if c.ID <= 0 {
			return fmt.Errorf("comments[%d]: id is required", i)
		}
	}
	return nil
}

// ToDomain converts the broker payload to a domain event. Unknown event
// types degrade to the catch-all type rather than failing, the tracker
// adds event kinds faster than this service tracks them.
func (m EventMessage) ToDomain() domain.Event {
	comments := make([]domain.Comment, 0, len(m.Comments))
	for _, c := range m.Comments {
		comments = append(comments, domain.Comment{
			ID:                    c.ID,
			Text:                  c.Text,
			AuthorID:              c.AuthorID,
			CreatedAt:             c.CreatedAt,
			MentionedRecipientIDs: c.MentionedRecipientIDs,
		})
	}

	return domain.Event{
		Type:          domain.ParseEventTypeFromString(m.EventType),
		WorkItemID:    m.WorkItemID,
		WorkItemTitle: m.WorkItemTitle,
		ActorID:       m.ActorID,
		Comments:      comments,
		OccurredAt:    m.OccurredAt,
	}
}

func MessageFromDomain(ev domain.Event, correlationID string) EventMessage {
	comments := make([]CommentMessage, 0, len(ev.Comments))
	for _, c := range ev.Comments {
		comments = append(comments, CommentMessage{
			ID:                    c.ID,
			Text:                  c.Text,
			AuthorID:              c.AuthorID,
			CreatedAt:             c.CreatedAt,
			MentionedRecipientIDs: c.MentionedRecipientIDs,
		})
	}

	return EventMessage{
		CorrelationID: correlationID,
		EventType:     ev.Type.String(),
		WorkItemID:    ev.WorkItemID,
		WorkItemTitle: ev.WorkItemTitle,
		ActorID:       ev.ActorID,
		Comments:      comments,
		OccurredAt:    ev.OccurredAt,
	}
}
