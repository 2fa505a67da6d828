package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/observability"
	"github.com/kursadbilgin/mention-relay/internal/queue"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"github.com/kursadbilgin/mention-relay/internal/schedule"
	"go.uber.org/zap"
)

// IngestionService applies tracker events to the pending queue. Every
// comment passes the dedup ledger before it can mutate the queue, so a
// replayed webhook or a requeued broker message never double-applies.
type IngestionService struct {
	pending    repository.PendingRepository
	processed  repository.ProcessedRepository
	recipients repository.RecipientRepository
	window     schedule.Window
	logger     *zap.Logger
	metrics    *observability.Metrics

	initialDelayHours float64
	now               func() time.Time
}

func NewIngestionService(
	pending repository.PendingRepository,
	processed repository.ProcessedRepository,
	recipients repository.RecipientRepository,
	window schedule.Window,
	initialDelayHours float64,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*IngestionService, error) {
	if pending == nil {
		return nil, fmt.Errorf("pending repository is required")
	}
	if processed == nil {
		return nil, fmt.Errorf("processed repository is required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient repository is required")
	}
	if initialDelayHours < 0 {
		return nil, fmt.Errorf("initial delay must not be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &IngestionService{
		pending:           pending,
		processed:         processed,
		recipients:        recipients,
		window:            window,
		logger:            logger,
		metrics:           metrics,
		initialDelayHours: initialDelayHours,
		now:               time.Now,
	}, nil
}

// HandleMessage adapts the broker payload for HandleEvent. It is the
// queue consumer's handler; a returned error requeues the message.
func (s *IngestionService) HandleMessage(ctx context.Context, msg queue.EventMessage) error {
	ev := msg.ToDomain()
	return s.HandleEvent(ctx, &ev)
}

func (s *IngestionService) HandleEvent(ctx context.Context, ev *domain.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	s.metrics.IncEventProcessed(ev.Type.String())

	switch {
	case ev.Type.ClosesWorkItem():
		return s.handleClosure(ctx, ev)
	case ev.Type == domain.EventCommentDeleted:
		return s.handleRetraction(ctx, ev)
	case ev.Type.CarriesComments():
		return s.handleActivity(ctx, ev)
	default:
		return nil
	}
}

// handleActivity treats any authored action on a work item as the
// actor answering their own reminder. Work-item updates without
// comments (field changes, approvals) clear the actor's row too.
func (s *IngestionService) handleActivity(ctx context.Context, ev *domain.Event) error {
	if ev.ActorID > 0 {
		if err := s.pending.Delete(ctx, ev.WorkItemID, ev.ActorID); err != nil {
			return fmt.Errorf("failed to clear actor reminder: %w", err)
		}
	}
	return s.handleComments(ctx, ev)
}

// handleClosure drops every queued reminder for a finished work item.
func (s *IngestionService) handleClosure(ctx context.Context, ev *domain.Event) error {
	if err := s.pending.DeleteByWorkItem(ctx, ev.WorkItemID); err != nil {
		return fmt.Errorf("failed to clear queue for closed work item %d: %w", ev.WorkItemID, err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("work item closed, cleared pending reminders",
		zap.Int64("workItemId", ev.WorkItemID),
	)
	return nil
}

// handleRetraction drops reminders whose triggering comment was
// deleted upstream. Rows that have since been shifted by a newer
// comment are left alone.
func (s *IngestionService) handleRetraction(ctx context.Context, ev *domain.Event) error {
	for i := range ev.Comments {
		commentID := ev.Comments[i].ID
		if err := s.pending.DeleteByComment(ctx, ev.WorkItemID, commentID); err != nil {
			return fmt.Errorf("failed to clear retracted comment %d: %w", commentID, err)
		}
	}
	return nil
}

func (s *IngestionService) handleComments(ctx context.Context, ev *domain.Event) error {
	for i := range ev.Comments {
		comment := &ev.Comments[i]

		seen, err := s.processed.Exists(ctx, ev.WorkItemID, comment.ID)
		if err != nil {
			return fmt.Errorf("failed to check dedup ledger: %w", err)
		}
		if seen {
			s.metrics.IncDuplicateComment()
			continue
		}

		// Record before mutating. If the mutation below fails and the
		// message is redelivered, the ledger hit skips the comment
		// rather than applying it twice.
		if err := s.processed.Record(ctx, ev.WorkItemID, comment.ID); err != nil {
			return fmt.Errorf("failed to record comment in dedup ledger: %w", err)
		}

		if err := s.applyComment(ctx, ev, comment); err != nil {
			return err
		}
	}
	return nil
}

func (s *IngestionService) applyComment(ctx context.Context, ev *domain.Event, comment *domain.Comment) error {
	// Commenting counts as reacting: the author's own pending reminder
	// for this work item is answered by their activity.
	if comment.AuthorID > 0 {
		if err := s.pending.Delete(ctx, ev.WorkItemID, comment.AuthorID); err != nil {
			return fmt.Errorf("failed to clear author reminder: %w", err)
		}
	}

	if len(comment.MentionedRecipientIDs) == 0 {
		return nil
	}

	mentioned, err := s.resolveMentions(ctx, comment)
	if err != nil {
		return err
	}
	if len(mentioned) == 0 {
		return nil
	}

	mentionedAt := comment.CreatedAt
	if mentionedAt.IsZero() {
		mentionedAt = s.now().UTC()
	}
	nextSendAt := s.window.After(mentionedAt, s.initialDelayHours)

	names := make([]string, 0, len(mentioned))
	for _, recipient := range mentioned {
		names = append(names, recipient.DisplayName)
	}
	cleanText := CleanMentionText(comment.Text, names...)

	for _, recipient := range mentioned {
		pending := &domain.PendingNotification{
			WorkItemID:           ev.WorkItemID,
			RecipientID:          recipient.ID,
			FirstMentionAt:       mentionedAt,
			LastMentionAt:        mentionedAt,
			LastCommentID:        comment.ID,
			LastCommentText:      comment.Text,
			LastCommentTextClean: cleanText,
			DisplayTitle:         ev.WorkItemTitle,
			NextSendAt:           nextSendAt,
		}

		if err := s.pending.UpsertOrShift(ctx, pending); err != nil {
			return fmt.Errorf("failed to queue mention for recipient %d: %w", recipient.ID, err)
		}

		s.metrics.IncMentionQueued()
		observability.WithContextLogger(s.logger, ctx).Debug("mention queued",
			zap.Int64("workItemId", ev.WorkItemID),
			zap.Int64("recipientId", recipient.ID),
			zap.Time("nextSendAt", nextSendAt),
		)
	}

	return nil
}

// resolveMentions looks up the mentioned parties. Self-mentions and
// unregistered recipients never queue a reminder; the latter are
// skipped silently, without a row and without an error.
func (s *IngestionService) resolveMentions(ctx context.Context, comment *domain.Comment) ([]*domain.Recipient, error) {
	mentioned := make([]*domain.Recipient, 0, len(comment.MentionedRecipientIDs))
	for _, recipientID := range comment.MentionedRecipientIDs {
		if recipientID == comment.AuthorID {
			continue
		}

		recipient, err := s.recipients.GetByID(ctx, recipientID)
		if errors.Is(err, domain.ErrNotFound) {
			observability.WithContextLogger(s.logger, ctx).Debug("mention of unregistered recipient skipped",
				zap.Int64("recipientId", recipientID),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mentioned recipient %d: %w", recipientID, err)
		}

		mentioned = append(mentioned, recipient)
	}
	return mentioned, nil
}
