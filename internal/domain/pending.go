package domain

import (
	"fmt"
	"time"
)

// Urgency rendering limits for batch ordering and display.
const (
	MinUrgencyLevel = 1
	MaxUrgencyLevel = 5
)

// PendingNotification is a queued mention reminder, unique per
// (work item, recipient) pair. The row is created on the first mention,
// shifted in place on later mentions, and removed once the recipient
// reacts, the work item closes, or the TTL elapses.
type PendingNotification struct {
	WorkItemID           int64
	RecipientID          int64
	FirstMentionAt       time.Time
	LastMentionAt        time.Time
	LastCommentID        int64
	LastCommentText      string
	LastCommentTextClean string
	DisplayTitle         string
	NextSendAt           time.Time
	TimesSent            int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (p *PendingNotification) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: pending notification is nil", ErrValidation)
	}
	if p.WorkItemID <= 0 {
		return fmt.Errorf("%w: work item id is required", ErrValidation)
	}
	if p.RecipientID <= 0 {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if p.NextSendAt.IsZero() {
		return fmt.Errorf("%w: next send time is required", ErrValidation)
	}
	return nil
}

// Expired reports whether the TTL window from the first mention has elapsed.
func (p *PendingNotification) Expired(now time.Time, ttl time.Duration) bool {
	if p.FirstMentionAt.IsZero() {
		return false
	}
	return !now.Before(p.FirstMentionAt.Add(ttl))
}

// HoursOverdue is the age of the last mention in fractional hours.
func (p *PendingNotification) HoursOverdue(now time.Time) float64 {
	if p.LastMentionAt.IsZero() || now.Before(p.LastMentionAt) {
		return 0
	}
	return now.Sub(p.LastMentionAt).Hours()
}

// UrgencyScore orders entries within a batch, most urgent first. It grows
// with both how long the mention has waited and how often it has already
// been repeated.
func (p *PendingNotification) UrgencyScore(now time.Time) float64 {
	return p.HoursOverdue(now) + 3*float64(p.TimesSent)
}

// UrgencyLevel buckets the score into [MinUrgencyLevel, MaxUrgencyLevel]
// for display.
func (p *PendingNotification) UrgencyLevel(now time.Time) int {
	level := MinUrgencyLevel + p.TimesSent + int(p.HoursOverdue(now)/6)
	if level > MaxUrgencyLevel {
		return MaxUrgencyLevel
	}
	if level < MinUrgencyLevel {
		return MinUrgencyLevel
	}
	return level
}
