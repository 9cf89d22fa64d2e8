package domain

import "time"

type FeedbackStatus string

const (
	FeedbackPending FeedbackStatus = "pending"
	FeedbackReplied FeedbackStatus = "replied"
)

type Feedback struct {
	ID         string
	SenderID   string
	ReceiverID string
	Message    string
	ParentID   string // set on replies
	Reply      string
	Status     FeedbackStatus
	RepliedAt  *time.Time
	CreatedAt  time.Time
}

// FeedbackEntry is a feedback row with its parties resolved and, for
// received entries, one level of replies.
type FeedbackEntry struct {
	Feedback
	Sender   *UserSummary
	Receiver *UserSummary
	Replies  []Feedback
}
