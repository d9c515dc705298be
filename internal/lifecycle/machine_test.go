package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMachine() *Machine {
	return &Machine{Now: func() time.Time { return fixedNow }}
}

func draft() *model.Message {
	return &model.Message{ID: "m1", Title: "Rally", Content: "Vote for Jane", State: model.Draft{}}
}

var approver = model.Actor{ID: "u-mgr", Role: model.RoleManager}

func TestHappyPath(t *testing.T) {
	m := newMachine()
	msg := draft()

	tr, err := m.Submit(msg, model.Actor{ID: "u-author", Role: model.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, tr.To.Status())
	require.NotNil(t, tr.Approval)
	assert.Equal(t, model.ApprovalPending, tr.Approval.Status)
	msg.State = tr.To

	tr, err = m.Approve(msg, approver, "looks good")
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, tr.Approval.Status)
	assert.Equal(t, "u-mgr", tr.Approval.ApprovedBy)
	msg.State = tr.To

	at := fixedNow.Add(24 * time.Hour)
	tr, err = m.Schedule(msg, at)
	require.NoError(t, err)
	assert.Nil(t, tr.Approval)
	msg.State = tr.To
	assert.Equal(t, model.StatusScheduled, msg.Status())
	require.NotNil(t, msg.ScheduledFor())
	assert.True(t, msg.ScheduledFor().Equal(at))

	tr, err = m.MarkPublished(msg, fixedNow)
	require.NoError(t, err)
	msg.State = tr.To
	assert.Equal(t, model.StatusPublished, msg.Status())
	assert.NotNil(t, msg.PublishedAt())
	assert.Nil(t, msg.ScheduledFor())
}

func TestPublishFromDraftIsIllegal(t *testing.T) {
	_, err := newMachine().MarkPublished(draft(), fixedNow)

	var ite *appErrors.IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "DRAFT", ite.From)
	assert.Equal(t, "publish", ite.Action)
	assert.True(t, errors.Is(err, appErrors.ErrIllegalTransition))
}

func TestScheduleInPastLeavesStateUnchanged(t *testing.T) {
	msg := draft()
	msg.State = model.Approved{}

	_, err := newMachine().Schedule(msg, fixedNow.Add(-time.Minute))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, model.StatusApproved, msg.Status())

	_, err = newMachine().Schedule(msg, fixedNow)
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "now is not strictly in the future")
}

func TestSubmitRequiresTitleAndContent(t *testing.T) {
	msg := draft()
	msg.Content = "   "
	_, err := newMachine().Submit(msg, approver)
	var ve *appErrors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "content", ve.Field)

	msg = draft()
	msg.Title = ""
	_, err = newMachine().Submit(msg, approver)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "title", ve.Field)
}

func TestResubmitRequiresModifiedContent(t *testing.T) {
	m := newMachine()
	msg := draft()
	msg.State = model.PendingApproval{}

	tr, err := m.RequestChanges(msg, approver, "tone it down")
	require.NoError(t, err)
	msg.State = tr.To

	_, err = m.Resubmit(msg, approver)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	msg.Content = "Vote for Jane on Tuesday"
	tr, err = m.Resubmit(msg, approver)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, tr.To.Status())
	assert.Equal(t, model.ApprovalPending, tr.Approval.Status)
}

func TestIllegalTransitions(t *testing.T) {
	m := newMachine()
	cases := []struct {
		name  string
		state model.MessageState
		run   func(*model.Message) (*Transition, error)
	}{
		{"approve draft", model.Draft{}, func(x *model.Message) (*Transition, error) { return m.Approve(x, approver, "") }},
		{"reject approved", model.Approved{}, func(x *model.Message) (*Transition, error) { return m.Reject(x, approver, "") }},
		{"submit pending", model.PendingApproval{}, func(x *model.Message) (*Transition, error) { return m.Submit(x, approver) }},
		{"resubmit rejected", model.Rejected{}, func(x *model.Message) (*Transition, error) { return m.Resubmit(x, approver) }},
		{"schedule draft", model.Draft{}, func(x *model.Message) (*Transition, error) { return m.Schedule(x, fixedNow.Add(time.Hour)) }},
		{"schedule scheduled", model.Scheduled{For: fixedNow.Add(time.Hour)}, func(x *model.Message) (*Transition, error) {
			return m.Schedule(x, fixedNow.Add(2*time.Hour))
		}},
		{"publish rejected", model.Rejected{}, func(x *model.Message) (*Transition, error) { return m.MarkPublished(x, fixedNow) }},
		{"archive published", model.Published{At: fixedNow}, func(x *model.Message) (*Transition, error) { return m.Archive(x) }},
		{"archive archived", model.Archived{}, func(x *model.Message) (*Transition, error) { return m.Archive(x) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := draft()
			msg.State = tc.state
			_, err := tc.run(msg)
			assert.True(t, errors.Is(err, appErrors.ErrIllegalTransition), "got %v", err)
		})
	}
}

func TestArchiveFromAnyNonTerminal(t *testing.T) {
	states := []model.MessageState{
		model.Draft{}, model.PendingApproval{}, model.Approved{}, model.Rejected{},
		model.ChangesRequested{}, model.Scheduled{For: fixedNow.Add(time.Hour)},
	}
	for _, s := range states {
		msg := draft()
		msg.State = s
		tr, err := newMachine().Archive(msg)
		require.NoError(t, err, s.Status())
		assert.Equal(t, model.StatusArchived, tr.To.Status())
	}
}
