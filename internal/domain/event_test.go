package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseEventTypeFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  EventType
	}{
		{name: "comment", input: "comment", want: EventComment},
		{name: "uppercase with spaces", input: " TASK_CLOSED ", want: EventTaskClosed},
		{name: "canceled", input: "task_canceled", want: EventTaskCanceled},
		{name: "unknown folds to other", input: "task_viewed", want: EventOther},
		{name: "empty folds to other", input: "", want: EventOther},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ParseEventTypeFromString(tt.input); got != tt.want {
				t.Fatalf("ParseEventTypeFromString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestEventTypePredicates(t *testing.T) {
	t.Parallel()

	if !EventTaskClosed.ClosesWorkItem() || !EventTaskCanceled.ClosesWorkItem() {
		t.Fatal("closed/canceled should close the work item")
	}
	if EventComment.ClosesWorkItem() {
		t.Fatal("comment should not close the work item")
	}
	if !EventComment.CarriesComments() || !EventTaskUpdated.CarriesComments() {
		t.Fatal("comment/task_updated should carry comments")
	}
	if EventCommentDeleted.CarriesComments() {
		t.Fatal("comment_deleted should not carry comments")
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := &Event{
		Type:       EventComment,
		WorkItemID: 42,
		ActorID:    7,
		Comments: []Comment{
			{ID: 1, Text: "hello", AuthorID: 7, CreatedAt: time.Now(), MentionedRecipientIDs: []int64{9}},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	missingWorkItem := &Event{Type: EventComment}
	if err := missingWorkItem.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	badComment := &Event{Type: EventComment, WorkItemID: 42, Comments: []Comment{{Text: "no id"}}}
	if err := badComment.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
