package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaignhq-backend/internal/model"
)

func TestBulkApproveReportsPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		msg := f.draft(t, "Vote for Jane")
		_, err := f.svc.Submit(ctx, staff, msg.ID)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	stillDraft := f.draft(t, "Vote for Jane")
	ids = append(ids, stillDraft.ID)

	res := f.svc.BulkApprove(ctx, manager, ids, "batch")
	assert.Equal(t, 4, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.Contains(t, res.Errors, stillDraft.ID)

	for _, id := range ids[:4] {
		assert.Equal(t, model.StatusApproved, f.status(t, id))
	}
	assert.Equal(t, model.StatusDraft, f.status(t, stillDraft.ID))
}

func TestBulkOperationsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.BulkConcurrency = 2

	a := f.draft(t, "a")
	b := f.draft(t, "b")
	c := f.approved(t, "c")

	res := f.svc.BulkSubmit(ctx, staff, []string{a.ID, b.ID, c.ID, a.ID})
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)

	res = f.svc.BulkReject(ctx, manager, []string{a.ID, b.ID, "missing"}, "off message")
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, model.StatusRejected, f.status(t, a.ID))

	res = f.svc.BulkArchive(ctx, volunteer, []string{a.ID, b.ID, c.ID})
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 3, res.ErrorCount)

	res = f.svc.BulkArchive(ctx, staff, []string{a.ID, b.ID, c.ID})
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, model.StatusArchived, f.status(t, c.ID))
}
