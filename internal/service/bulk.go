package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaignhq-backend/internal/model"
)

const defaultBulkConcurrency = 4

// BulkResult reports per-item outcomes. Items are independent: one failure never
// rolls back the others.
type BulkResult struct {
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	Errors       map[string]string `json:"errors,omitempty"`
}

func (s *MessageService) BulkApprove(ctx context.Context, actor model.Actor, ids []string, comments string) *BulkResult {
	return s.bulk(ctx, "approve", ids, func(ctx context.Context, id string) error {
		_, err := s.Approve(ctx, actor, id, comments)
		return err
	})
}

func (s *MessageService) BulkReject(ctx context.Context, actor model.Actor, ids []string, comments string) *BulkResult {
	return s.bulk(ctx, "reject", ids, func(ctx context.Context, id string) error {
		_, err := s.Reject(ctx, actor, id, comments)
		return err
	})
}

func (s *MessageService) BulkArchive(ctx context.Context, actor model.Actor, ids []string) *BulkResult {
	return s.bulk(ctx, "archive", ids, func(ctx context.Context, id string) error {
		_, err := s.Archive(ctx, actor, id)
		return err
	})
}

func (s *MessageService) BulkSubmit(ctx context.Context, actor model.Actor, ids []string) *BulkResult {
	return s.bulk(ctx, "submit", ids, func(ctx context.Context, id string) error {
		_, err := s.Submit(ctx, actor, id)
		return err
	})
}

func (s *MessageService) bulk(ctx context.Context, op string, ids []string, fn func(context.Context, string) error) *BulkResult {
	limit := s.BulkConcurrency
	if limit <= 0 {
		limit = defaultBulkConcurrency
	}

	var (
		mu     sync.Mutex
		result = &BulkResult{Errors: map[string]string{}}
		seen   = map[string]bool{}
		g      errgroup.Group
	)
	g.SetLimit(limit)

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		id := id

		g.Go(func() error {
			err := fn(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.ErrorCount++
				result.Errors[id] = err.Error()
				return nil
			}
			result.SuccessCount++
			return nil
		})
	}
	_ = g.Wait()

	orNop(s.Logger).Info("bulk operation finished",
		zap.String("op", op),
		zap.Int("success", result.SuccessCount),
		zap.Int("errors", result.ErrorCount))
	return result
}
