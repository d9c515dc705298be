package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

func TestVoteForJaneEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := f.draft(t, "Vote for Jane")
	assert.Equal(t, model.StatusDraft, msg.Status())

	msg, err := f.svc.Submit(ctx, staff, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, msg.Status())
	approvals, _ := f.messages.ListApprovals(ctx, msg.ID)
	require.Len(t, approvals, 1)
	assert.Equal(t, model.ApprovalPending, approvals[0].Status)

	msg, err = f.svc.Approve(ctx, manager, msg.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, msg.Status())
	approvals, _ = f.messages.ListApprovals(ctx, msg.ID)
	require.Len(t, approvals, 2)
	assert.Equal(t, model.ApprovalApproved, approvals[0].Status)
	assert.Equal(t, manager.ID, approvals[0].ApprovedBy)

	when := f.clock.Add(24 * time.Hour)
	msg, err = f.svc.Schedule(ctx, staff, msg.ID, when)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, msg.Status())
	require.NotNil(t, msg.ScheduledFor())
	assert.True(t, when.Equal(*msg.ScheduledFor()))

	res, err := f.dispatcher.Publish(ctx, staff, msg.ID, model.PlatformEmail, service.PublishSettings{
		Recipients: []string{"voter@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PublishSuccess, res.Status)

	details, err := f.svc.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, details.Message.Status())
	assert.NotNil(t, details.Message.PublishedAt())
	assert.Nil(t, details.Message.ScheduledFor())
	require.Len(t, details.History, 1)
	assert.Equal(t, model.PublishSuccess, details.History[0].Status)
	assert.Equal(t, 1, f.email.SentCount())

	var types []string
	for _, e := range f.events.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"message.created", "message.submit", "message.approve", "message.schedule", "message.publish"}, types)
}

func TestScheduleInThePastLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	msg := f.approved(t, "Vote for Jane")

	_, err := f.svc.Schedule(context.Background(), staff, msg.ID, f.clock.Add(-time.Hour))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, model.StatusApproved, f.status(t, msg.ID))
}

func TestRoleGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")
	_, err := f.svc.Submit(ctx, volunteer, msg.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, staff, msg.ID, "")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.svc.Archive(ctx, volunteer, msg.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, model.StatusPendingApproval, f.status(t, msg.ID))
}

func TestCreateMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	red := model.ApprovalTier("PURPLE")

	cases := []service.CreateMessageInput{
		{CampaignID: f.campaignID, Title: "x", Platform: "CARRIER_PIGEON"},
		{CampaignID: f.campaignID, Title: " ", Platform: model.PlatformEmail},
		{CampaignID: f.campaignID, Title: "x", Platform: model.PlatformEmail, ApprovalTier: &red},
	}
	for _, in := range cases {
		_, err := f.svc.CreateMessage(ctx, staff, in)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "%+v", in)
	}

	_, err := f.svc.CreateMessage(ctx, staff, service.CreateMessageInput{CampaignID: "nope", Title: "x", Platform: model.PlatformSMS})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRequestChangesAndResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")
	_, err := f.svc.Submit(ctx, staff, msg.ID)
	require.NoError(t, err)

	msg, err = f.svc.RequestChanges(ctx, manager, msg.ID, "mention the date")
	require.NoError(t, err)
	assert.Equal(t, model.StatusChangesRequested, msg.Status())

	_, err = f.svc.Resubmit(ctx, staff, msg.ID)
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "unchanged content must not resubmit")

	content := "Vote for Jane on November 3rd"
	_, err = f.svc.UpdateContent(ctx, staff, msg.ID, service.UpdateMessageInput{Content: &content})
	require.NoError(t, err)

	msg, err = f.svc.Resubmit(ctx, staff, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, msg.Status())

	approvals, _ := f.messages.ListApprovals(ctx, msg.ID)
	require.Len(t, approvals, 3)
	assert.Equal(t, model.ApprovalPending, approvals[0].Status)
	assert.Equal(t, model.ApprovalChangesRequested, approvals[1].Status)
	assert.Equal(t, "mention the date", approvals[1].Comments)
}

func TestUpdateContentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")

	title := "Rally on Main St"
	stale := msg.Revision + 5
	_, err := f.svc.UpdateContent(ctx, staff, msg.ID, service.UpdateMessageInput{Title: &title, Revision: stale})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	updated, err := f.svc.UpdateContent(ctx, staff, msg.ID, service.UpdateMessageInput{Title: &title, Revision: msg.Revision})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, msg.Revision+1, updated.Revision)

	_, err = f.svc.Submit(ctx, staff, msg.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateContent(ctx, staff, msg.ID, service.UpdateMessageInput{Title: &title})
	assert.True(t, errors.Is(err, appErrors.ErrIllegalTransition))
}

func TestSetApprovalTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")

	updated, err := f.svc.SetApprovalTier(ctx, staff, msg.ID, model.TierYellow)
	require.NoError(t, err)
	require.NotNil(t, updated.ApprovalTier)
	assert.Equal(t, model.TierYellow, *updated.ApprovalTier)

	_, err = f.svc.SetApprovalTier(ctx, staff, msg.ID, "ORANGE")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")

	other := model.Actor{ID: "u-other", Role: model.RoleStaff}
	assert.True(t, errors.Is(f.svc.DeleteDraft(ctx, other, msg.ID), appErrors.ErrForbidden))

	require.NoError(t, f.svc.DeleteDraft(ctx, staff, msg.ID))
	_, err := f.messages.GetByID(ctx, msg.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	submitted := f.draft(t, "Vote for Jane")
	_, err = f.svc.Submit(ctx, staff, submitted.ID)
	require.NoError(t, err)
	assert.True(t, errors.Is(f.svc.DeleteDraft(ctx, owner, submitted.ID), appErrors.ErrIllegalTransition))
}

func TestListMessagesFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.draft(t, "one")
	f.draft(t, "two")
	f.approved(t, "three")

	msgs, pagination, err := f.svc.ListMessages(ctx, f.campaignID, model.StatusDraft, "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 2, pagination["total_count"])

	_, _, err = f.svc.ListMessages(ctx, f.campaignID, "", "FAX", 1, 10)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGenerateVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")

	v, err := f.svc.GenerateVersion(ctx, staff, msg.ID, "youth")
	require.NoError(t, err)
	assert.Equal(t, "youth", v.VersionProfile)
	assert.Equal(t, "adapted content", v.Content)
	assert.Equal(t, staff.ID, v.CreatedBy)
	assert.Contains(t, f.generator.instructions, "Name: Jane Doe")

	_, err = f.svc.GenerateVersion(ctx, staff, msg.ID, "martians")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	versions, err := f.svc.ListVersions(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestGenerateVersionFailureLeavesMessageUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")
	f.generator.err = errors.New("upstream overloaded")

	_, err := f.svc.GenerateVersion(ctx, staff, msg.ID, "senior")
	assert.True(t, errors.Is(err, appErrors.ErrGeneration))

	after, err := f.messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, after.Status())
	assert.Equal(t, msg.Revision, after.Revision)
	versions, _ := f.messages.ListVersions(ctx, msg.ID)
	assert.Empty(t, versions)

	f.generator.err = nil
	f.generator.out = "   "
	_, err = f.svc.GenerateVersion(ctx, staff, msg.ID, "senior")
	assert.True(t, errors.Is(err, appErrors.ErrGeneration))
}

func TestVersionsRejectedOnArchivedMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.draft(t, "Vote for Jane")

	_, err := f.svc.AddVersion(ctx, staff, msg.ID, "rural", "Howdy, vote for Jane")
	require.NoError(t, err)
	_, err = f.svc.AddVersion(ctx, staff, msg.ID, "nowhere", "text")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Archive(ctx, staff, msg.ID)
	require.NoError(t, err)
	_, err = f.svc.AddVersion(ctx, staff, msg.ID, "rural", "too late")
	assert.True(t, errors.Is(err, appErrors.ErrIllegalTransition))
	_, err = f.svc.GenerateVersion(ctx, staff, msg.ID, "rural")
	assert.True(t, errors.Is(err, appErrors.ErrIllegalTransition))
}
