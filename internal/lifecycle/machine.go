// Package lifecycle implements the message status state machine. It is pure: every method
// computes the next state and the log record to append, and callers persist both.
package lifecycle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

type Action string

const (
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request-changes"
	ActionResubmit       Action = "resubmit"
	ActionSchedule       Action = "schedule"
	ActionPublish        Action = "publish"
	ActionArchive        Action = "archive"
)

// Transition is the outcome of a successful action. Approval is nil for actions that do
// not touch the review log (schedule, publish, archive).
type Transition struct {
	Action   Action
	From     model.MessageState
	To       model.MessageState
	Approval *model.Approval
}

type Machine struct {
	Now func() time.Time
}

func New() *Machine {
	return &Machine{Now: func() time.Time { return time.Now().UTC() }}
}

func (m *Machine) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now()
}

// ContentHash fingerprints message content so a resubmit can prove it changed.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Submit moves a draft into review. Title and content must be non-blank.
func (m *Machine) Submit(msg *model.Message, actor model.Actor) (*Transition, error) {
	if _, ok := state(msg).(model.Draft); !ok {
		return nil, illegal(msg, ActionSubmit)
	}
	if strings.TrimSpace(msg.Title) == "" {
		return nil, appErrors.NewValidation("title", "must not be empty")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, appErrors.NewValidation("content", "must not be empty")
	}
	return m.review(msg, ActionSubmit, model.PendingApproval{}, model.ApprovalPending, actor, ""), nil
}

func (m *Machine) Approve(msg *model.Message, actor model.Actor, comments string) (*Transition, error) {
	if _, ok := state(msg).(model.PendingApproval); !ok {
		return nil, illegal(msg, ActionApprove)
	}
	return m.review(msg, ActionApprove, model.Approved{}, model.ApprovalApproved, actor, comments), nil
}

func (m *Machine) Reject(msg *model.Message, actor model.Actor, comments string) (*Transition, error) {
	if _, ok := state(msg).(model.PendingApproval); !ok {
		return nil, illegal(msg, ActionReject)
	}
	return m.review(msg, ActionReject, model.Rejected{}, model.ApprovalRejected, actor, comments), nil
}

// RequestChanges sends the message back to its author and remembers what was reviewed.
func (m *Machine) RequestChanges(msg *model.Message, actor model.Actor, comments string) (*Transition, error) {
	if _, ok := state(msg).(model.PendingApproval); !ok {
		return nil, illegal(msg, ActionRequestChanges)
	}
	to := model.ChangesRequested{ReviewedContentHash: ContentHash(msg.Content)}
	return m.review(msg, ActionRequestChanges, to, model.ApprovalChangesRequested, actor, comments), nil
}

// Resubmit returns a message to review once its content differs from what the reviewer saw.
func (m *Machine) Resubmit(msg *model.Message, actor model.Actor) (*Transition, error) {
	cr, ok := state(msg).(model.ChangesRequested)
	if !ok {
		return nil, illegal(msg, ActionResubmit)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, appErrors.NewValidation("content", "must not be empty")
	}
	if cr.ReviewedContentHash != "" && ContentHash(msg.Content) == cr.ReviewedContentHash {
		return nil, appErrors.NewValidation("content", "must be modified before resubmitting")
	}
	return m.review(msg, ActionResubmit, model.PendingApproval{}, model.ApprovalPending, actor, ""), nil
}

// Schedule sets a publish time on an approved message. at must be strictly in the future.
func (m *Machine) Schedule(msg *model.Message, at time.Time) (*Transition, error) {
	if _, ok := state(msg).(model.Approved); !ok {
		return nil, illegal(msg, ActionSchedule)
	}
	if !at.After(m.now()) {
		return nil, appErrors.NewValidation("scheduledFor", "must be in the future")
	}
	return &Transition{Action: ActionSchedule, From: state(msg), To: model.Scheduled{For: at.UTC()}}, nil
}

// CanPublish reports whether a message in state s may be handed to a provider.
func CanPublish(s model.MessageState) bool {
	switch s.(type) {
	case model.Approved, model.Scheduled:
		return true
	}
	return false
}

// MarkPublished records a successful provider send.
func (m *Machine) MarkPublished(msg *model.Message, at time.Time) (*Transition, error) {
	if !CanPublish(state(msg)) {
		return nil, illegal(msg, ActionPublish)
	}
	return &Transition{Action: ActionPublish, From: state(msg), To: model.Published{At: at.UTC()}}, nil
}

// CheckPublishable returns the illegal-transition error MarkPublished would return.
func CheckPublishable(msg *model.Message) error {
	if !CanPublish(state(msg)) {
		return illegal(msg, ActionPublish)
	}
	return nil
}

// Archive is allowed from any non-terminal state.
func (m *Machine) Archive(msg *model.Message) (*Transition, error) {
	if msg.Status().Terminal() {
		return nil, illegal(msg, ActionArchive)
	}
	return &Transition{Action: ActionArchive, From: state(msg), To: model.Archived{}}, nil
}

func (m *Machine) review(msg *model.Message, action Action, to model.MessageState, status model.ApprovalStatus, actor model.Actor, comments string) *Transition {
	return &Transition{
		Action: action,
		From:   state(msg),
		To:     to,
		Approval: &model.Approval{
			MessageID:  msg.ID,
			Status:     status,
			Comments:   strings.TrimSpace(comments),
			ApprovedBy: actor.ID,
			CreatedAt:  m.now(),
		},
	}
}

func state(msg *model.Message) model.MessageState {
	if msg.State == nil {
		return model.Draft{}
	}
	return msg.State
}

func illegal(msg *model.Message, action Action) error {
	return appErrors.NewIllegalTransition(string(msg.Status()), string(action))
}
