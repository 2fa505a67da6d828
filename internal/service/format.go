package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kursadbilgin/mention-relay/internal/domain"
)

const (
	defaultTitleTruncateLen   = 50
	defaultCommentTruncateLen = 50

	emptyTextPlaceholder = "(no text)"
)

var mentionTokenRe = regexp.MustCompile(`(^|\s)@[\w.\-]+`)

// Formatter renders reminder messages for one recipient. All pending
// rows of a recipient collapse into a single message, ordered most
// urgent first.
type Formatter struct {
	titleLen    int
	commentLen  int
	urlTemplate string
}

func NewFormatter(titleLen, commentLen int, urlTemplate string) *Formatter {
	if titleLen < 1 {
		titleLen = defaultTitleTruncateLen
	}
	if commentLen < 1 {
		commentLen = defaultCommentTruncateLen
	}

	return &Formatter{
		titleLen:    titleLen,
		commentLen:  commentLen,
		urlTemplate: urlTemplate,
	}
}

// FormatBatch renders all pending rows of one recipient into a single
// message. Rows are ordered by urgency, oldest and most-reminded first.
func (f *Formatter) FormatBatch(rows []domain.PendingNotification, now time.Time) string {
	if len(rows) == 0 {
		return ""
	}

	sorted := make([]domain.PendingNotification, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].UrgencyScore(now), sorted[j].UrgencyScore(now)
		if si != sj {
			return si > sj
		}
		return sorted[i].FirstMentionAt.Before(sorted[j].FirstMentionAt)
	})

	var b strings.Builder
	if len(sorted) == 1 {
		b.WriteString("You have an unanswered mention:\n")
	} else {
		fmt.Fprintf(&b, "You have %d unanswered mentions:\n", len(sorted))
	}

	for i := range sorted {
		b.WriteString("\n")
		b.WriteString(f.formatLine(&sorted[i], now))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (f *Formatter) formatLine(row *domain.PendingNotification, now time.Time) string {
	var b strings.Builder

	b.WriteString(urgencyIcons(row.UrgencyLevel(now)))
	b.WriteString(" ")
	b.WriteString(truncate(titleOrFallback(row), f.titleLen))

	snippet := commentSnippet(row)
	fmt.Fprintf(&b, "\n%s", truncate(snippet, f.commentLen))

	if link := f.workItemLink(row.WorkItemID); link != "" {
		fmt.Fprintf(&b, "\n%s", link)
	}

	return b.String()
}

func (f *Formatter) workItemLink(workItemID int64) string {
	if strings.TrimSpace(f.urlTemplate) == "" {
		return ""
	}
	if strings.Contains(f.urlTemplate, "%d") {
		return fmt.Sprintf(f.urlTemplate, workItemID)
	}
	return f.urlTemplate
}

func titleOrFallback(row *domain.PendingNotification) string {
	if title := strings.TrimSpace(row.DisplayTitle); title != "" {
		return title
	}
	return fmt.Sprintf("Work item #%d", row.WorkItemID)
}

func commentSnippet(row *domain.PendingNotification) string {
	text := strings.TrimSpace(row.LastCommentTextClean)
	if text == "" {
		text = CleanMentionText(row.LastCommentText)
	}
	if text == "" {
		return emptyTextPlaceholder
	}
	return text
}

func urgencyIcons(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	return strings.Repeat("\U0001F525", level)
}

// CleanMentionText strips mention tokens and any of the given full
// names, then collapses the remaining whitespace. Mention tokens only
// match at a word start, so infix addresses like e-mails survive. An
// empty result means the comment was nothing but mentions.
func CleanMentionText(text string, fullNames ...string) string {
	cleaned := mentionTokenRe.ReplaceAllString(text, "$1")
	for _, name := range fullNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		nameRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name))
		cleaned = nameRe.ReplaceAllString(cleaned, " ")
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
