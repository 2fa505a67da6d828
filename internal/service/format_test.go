package service

import (
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
)

func TestCleanMentionText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "strips mention token", text: "@maria please review", want: "please review"},
		{name: "strips several mentions", text: "@maria @ivan ping", want: "ping"},
		{name: "only mentions leaves empty", text: "@maria @ivan", want: ""},
		{name: "collapses whitespace", text: "  look   at @maria  this ", want: "look at this"},
		{name: "plain text untouched", text: "deploy is broken", want: "deploy is broken"},
		{name: "keeps trailing punctuation", text: "@maria, please", want: ", please"},
		{name: "keeps e-mail addresses", text: "mail user@example.com today", want: "mail user@example.com today"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CleanMentionText(tt.text)
			if got != tt.want {
				t.Fatalf("CleanMentionText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestCleanMentionTextStripsFullNames(t *testing.T) {
	t.Parallel()

	got := CleanMentionText("Maria Petrova could you check, maria petrova?", "Maria Petrova")
	if want := "could you check, ?"; got != want {
		t.Fatalf("CleanMentionText() = %q, want %q", got, want)
	}

	got = CleanMentionText("@ivan see notes", "Maria Petrova", "")
	if want := "see notes"; got != want {
		t.Fatalf("CleanMentionText() = %q, want %q", got, want)
	}
}

func TestFormatBatchOrdersByUrgency(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFormatter(50, 50, "")

	rows := []domain.PendingNotification{
		{
			WorkItemID:           1,
			RecipientID:          7,
			FirstMentionAt:       now.Add(-1 * time.Hour),
			LastMentionAt:        now.Add(-1 * time.Hour),
			LastCommentTextClean: "fresh mention",
			DisplayTitle:         "Fresh item",
		},
		{
			WorkItemID:           2,
			RecipientID:          7,
			FirstMentionAt:       now.Add(-20 * time.Hour),
			LastMentionAt:        now.Add(-20 * time.Hour),
			LastCommentTextClean: "old mention",
			DisplayTitle:         "Old item",
			TimesSent:            2,
		},
	}

	got := f.FormatBatch(rows, now)
	if !strings.HasPrefix(got, "You have 2 unanswered mentions:") {
		t.Fatalf("missing batch header in %q", got)
	}

	oldIdx := strings.Index(got, "Old item")
	freshIdx := strings.Index(got, "Fresh item")
	if oldIdx == -1 || freshIdx == -1 {
		t.Fatalf("missing items in %q", got)
	}
	if oldIdx > freshIdx {
		t.Fatalf("expected more urgent item first, got %q", got)
	}
}

func TestFormatBatchSingle(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFormatter(50, 50, "https://tracker.example/items/%d")

	rows := []domain.PendingNotification{
		{
			WorkItemID:           42,
			RecipientID:          7,
			FirstMentionAt:       now.Add(-4 * time.Hour),
			LastMentionAt:        now.Add(-4 * time.Hour),
			LastCommentTextClean: "can you check the deploy",
			DisplayTitle:         "Release checklist",
		},
	}

	got := f.FormatBatch(rows, now)
	if !strings.HasPrefix(got, "You have an unanswered mention:") {
		t.Fatalf("missing single header in %q", got)
	}
	if !strings.Contains(got, "Release checklist") {
		t.Fatalf("missing title in %q", got)
	}
	if !strings.Contains(got, "https://tracker.example/items/42") {
		t.Fatalf("missing work item link in %q", got)
	}
}

func TestFormatBatchTruncation(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFormatter(10, 10, "")

	rows := []domain.PendingNotification{
		{
			WorkItemID:           1,
			RecipientID:          7,
			FirstMentionAt:       now.Add(-time.Hour),
			LastMentionAt:        now.Add(-time.Hour),
			LastCommentTextClean: "this comment is definitely too long",
			DisplayTitle:         "a very long work item title",
		},
	}

	got := f.FormatBatch(rows, now)
	if !strings.Contains(got, "a very lo…") {
		t.Fatalf("title not truncated in %q", got)
	}
	if !strings.Contains(got, "this comm…") {
		t.Fatalf("comment not truncated in %q", got)
	}
}

func TestFormatBatchEmptyTextFallback(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFormatter(50, 50, "")

	rows := []domain.PendingNotification{
		{
			WorkItemID:      1,
			RecipientID:     7,
			FirstMentionAt:  now.Add(-time.Hour),
			LastMentionAt:   now.Add(-time.Hour),
			LastCommentText: "@maria @ivan",
		},
	}

	got := f.FormatBatch(rows, now)
	if !strings.Contains(got, emptyTextPlaceholder) {
		t.Fatalf("missing empty-text placeholder in %q", got)
	}
	if !strings.Contains(got, "Work item #1") {
		t.Fatalf("missing title fallback in %q", got)
	}
}

func TestFormatBatchUrgencyIcons(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFormatter(50, 50, "")

	rows := []domain.PendingNotification{
		{
			WorkItemID:           1,
			RecipientID:          7,
			FirstMentionAt:       now.Add(-30 * time.Hour),
			LastMentionAt:        now.Add(-30 * time.Hour),
			LastCommentTextClean: "really overdue",
			DisplayTitle:         "Hot item",
			TimesSent:            4,
		},
	}

	got := f.FormatBatch(rows, now)
	if !strings.Contains(got, strings.Repeat("\U0001F525", 5)) {
		t.Fatalf("expected max urgency icons in %q", got)
	}
	if strings.Contains(got, strings.Repeat("\U0001F525", 6)) {
		t.Fatalf("urgency icons exceed the cap in %q", got)
	}
}

func TestFormatBatchEmptyRows(t *testing.T) {
	t.Parallel()

	f := NewFormatter(50, 50, "")
	if got := f.FormatBatch(nil, time.Now()); got != "" {
		t.Fatalf("FormatBatch(nil) = %q, want empty", got)
	}
}
