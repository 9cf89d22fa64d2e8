package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/pkg/idx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
)

// FeedbackService is the message thread between users and admins. It does
// not go through the lifecycle engine.
type FeedbackService struct {
	Store store.Store

	Now func() time.Time
}

func (s *FeedbackService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Send creates a pending entry from sender to receiverID.
func (s *FeedbackService) Send(ctx context.Context, sender domain.User, receiverID, message string) (domain.Feedback, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Feedback{}, invalidField("message", "message cannot be blank")
	}

	if _, err := s.Store.Users().GetUserByID(ctx, receiverID); err != nil {
		return domain.Feedback{}, mapStoreErr(err)
	}

	f := s.newEntry(sender.ID, receiverID, message)
	if err := s.Store.Feedback().CreateFeedback(ctx, f); err != nil {
		return domain.Feedback{}, mapStoreErr(err)
	}
	slogx.FromContext(ctx).Info("feedback sent", "feedback_id", f.ID, "receiver_id", receiverID)
	return f, nil
}

// SendToAdmins delivers one copy of message to every admin other than the
// sender, all or nothing.
func (s *FeedbackService) SendToAdmins(ctx context.Context, sender domain.User, message string) ([]domain.Feedback, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalidField("message", "message cannot be blank")
	}

	admins, err := s.Store.Users().ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	var sent []domain.Feedback
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, admin := range admins {
			if admin.ID == sender.ID {
				continue
			}
			f := s.newEntry(sender.ID, admin.ID, message)
			if err := tx.Feedback().CreateFeedback(ctx, f); err != nil {
				return err
			}
			sent = append(sent, f)
		}
		if len(sent) == 0 {
			return fmt.Errorf("%w: no admin to receive feedback", ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	slogx.FromContext(ctx).Info("feedback sent to admins", "admins", len(sent))
	return sent, nil
}

// Reply answers a feedback entry. The reply is a new entry back to the
// original sender and the original is marked replied, in one transaction.
func (s *FeedbackService) Reply(ctx context.Context, feedbackID string, admin domain.User, reply string) (domain.Feedback, error) {
	if admin.Role != domain.RoleAdmin {
		return domain.Feedback{}, ErrWrongRole
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.Feedback{}, invalidField("reply", "reply cannot be blank")
	}

	var out domain.Feedback
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		orig, err := tx.Feedback().GetFeedbackByID(ctx, feedbackID)
		if err != nil {
			return err
		}

		now := s.now()
		out = domain.Feedback{
			ID:         idx.New().String(),
			SenderID:   admin.ID,
			ReceiverID: orig.SenderID,
			Message:    orig.Message,
			ParentID:   orig.ID,
			Reply:      reply,
			Status:     domain.FeedbackReplied,
			RepliedAt:  &now,
			CreatedAt:  now,
		}
		if err := tx.Feedback().CreateFeedback(ctx, out); err != nil {
			return err
		}
		return tx.Feedback().MarkReplied(ctx, orig.ID, reply, now)
	})
	if err != nil {
		return domain.Feedback{}, mapStoreErr(err)
	}

	slogx.FromContext(ctx).Info("feedback replied", "feedback_id", feedbackID, "reply_id", out.ID)
	return out, nil
}

// ListReceived returns entries addressed to user, newest first, each with
// its direct replies.
func (s *FeedbackService) ListReceived(ctx context.Context, user domain.User) ([]domain.FeedbackEntry, error) {
	fs, err := s.Store.Feedback().ListByReceiver(ctx, user.ID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	ids := make([]string, 0, len(fs))
	for _, f := range fs {
		ids = append(ids, f.ID)
	}
	replies, err := s.Store.Feedback().ListReplies(ctx, ids)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	byParent := make(map[string][]domain.Feedback)
	for _, r := range replies {
		byParent[r.ParentID] = append(byParent[r.ParentID], r)
	}

	entries, err := s.resolve(ctx, fs)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Replies = byParent[entries[i].ID]
	}
	return entries, nil
}

// ListSent returns entries sent by user, newest first.
func (s *FeedbackService) ListSent(ctx context.Context, user domain.User) ([]domain.FeedbackEntry, error) {
	fs, err := s.Store.Feedback().ListBySender(ctx, user.ID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return s.resolve(ctx, fs)
}

func (s *FeedbackService) resolve(ctx context.Context, fs []domain.Feedback) ([]domain.FeedbackEntry, error) {
	ids := make([]string, 0, 2*len(fs))
	for _, f := range fs {
		ids = append(ids, f.SenderID, f.ReceiverID)
	}
	users, err := s.Store.Users().GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	entries := make([]domain.FeedbackEntry, 0, len(fs))
	for _, f := range fs {
		e := domain.FeedbackEntry{Feedback: f}
		if u, ok := users[f.SenderID]; ok {
			e.Sender = u.Summary()
		}
		if u, ok := users[f.ReceiverID]; ok {
			e.Receiver = u.Summary()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *FeedbackService) newEntry(senderID, receiverID, message string) domain.Feedback {
	return domain.Feedback{
		ID:         idx.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    message,
		Status:     domain.FeedbackPending,
		CreatedAt:  s.now(),
	}
}
