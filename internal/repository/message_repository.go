package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

// MessageFilter narrows ListMessages. Empty fields are ignored.
type MessageFilter struct {
	CampaignID string
	Status     model.MessageStatus
	Platform   model.Platform
	Offset     int
	Limit      int
}

type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	List(ctx context.Context, f MessageFilter) ([]*model.Message, int, error)
	UpdateContent(ctx context.Context, m *model.Message) error
	Delete(ctx context.Context, m *model.Message) error
	SaveTransition(ctx context.Context, m *model.Message, approval *model.Approval, history []model.PublishHistory) error
	AppendPublishHistory(ctx context.Context, rows ...model.PublishHistory) error
	AddVersion(ctx context.Context, v *model.Version) error
	ListVersions(ctx context.Context, messageID string) ([]model.Version, error)
	ListApprovals(ctx context.Context, messageID string) ([]model.Approval, error)
	ListPublishHistory(ctx context.Context, messageID string) ([]model.PublishHistory, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Message, error)
}

// MessageRepository persists messages and their append-only logs. Every write that
// changes a message row is guarded by its revision counter.
type MessageRepository struct {
	store
}

func NewMessageRepository(conn *sql.DB, driver string) *MessageRepository {
	return &MessageRepository{store{DB: conn, Driver: driver}}
}

const messageColumns = "id, campaign_id, author_id, title, content, platform, status, approval_tier, " +
	"scheduled_for, published_at, review_hash, revision, created_at, updated_at"

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = newID()
	}
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	m.Revision = 1
	if m.State == nil {
		m.State = model.Draft{}
	}
	cols := model.Columns(m.State)

	_, err := r.DB.ExecContext(ctx, r.rebind(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.CampaignID, m.AuthorID, m.Title, m.Content, string(m.Platform), string(cols.Status),
		tierValue(m.ApprovalTier), utcPtr(cols.ScheduledFor), utcPtr(cols.PublishedAt), cols.ReviewHash,
		m.Revision, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	row := r.DB.QueryRowContext(ctx, r.rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewMessageNotFound(id)
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) List(ctx context.Context, f MessageFilter) ([]*model.Message, int, error) {
	where := sq.Eq{}
	if f.CampaignID != "" {
		where["campaign_id"] = f.CampaignID
	}
	if f.Status != "" {
		where["status"] = string(f.Status)
	}
	if f.Platform != "" {
		where["platform"] = string(f.Platform)
	}

	sel := r.builder().Select(messageColumns).From("messages").Where(where).OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		sel = sel.Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, err
	}

	messages, err := r.queryMessages(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := r.builder().Select("COUNT(*)").From("messages").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// UpdateContent writes title, content and approval tier. m.Revision must hold the
// revision the caller read; it is incremented on success.
func (r *MessageRepository) UpdateContent(ctx context.Context, m *model.Message) error {
	ts := now()
	res, err := r.DB.ExecContext(ctx, r.rebind(`
		UPDATE messages
		SET title = ?, content = ?, approval_tier = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?`),
		m.Title, m.Content, tierValue(m.ApprovalTier), ts, m.ID, m.Revision)
	if err != nil {
		return err
	}
	if err := r.checkRevision(ctx, r.DB, res, m.ID); err != nil {
		return err
	}
	m.Revision++
	m.UpdatedAt = ts
	return nil
}

// Delete removes a message and its logs.
func (r *MessageRepository) Delete(ctx context.Context, m *model.Message) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM messages WHERE id = ? AND revision = ?`), m.ID, m.Revision)
		if err != nil {
			return err
		}
		if err := r.checkRevision(ctx, tx, res, m.ID); err != nil {
			return err
		}
		for _, table := range []string{"message_versions", "approvals", "publish_history"} {
			if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM `+table+` WHERE message_id = ?`), m.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveTransition persists m.State together with the log rows the transition produced,
// atomically. m.Revision is the revision the caller read and is bumped on success.
func (r *MessageRepository) SaveTransition(ctx context.Context, m *model.Message, approval *model.Approval, history []model.PublishHistory) error {
	cols := model.Columns(m.State)
	ts := now()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(`
			UPDATE messages
			SET status = ?, scheduled_for = ?, published_at = ?, review_hash = ?,
			    revision = revision + 1, updated_at = ?
			WHERE id = ? AND revision = ?`),
			string(cols.Status), utcPtr(cols.ScheduledFor), utcPtr(cols.PublishedAt), cols.ReviewHash,
			ts, m.ID, m.Revision)
		if err != nil {
			return err
		}
		if err := r.checkRevision(ctx, tx, res, m.ID); err != nil {
			return err
		}
		if approval != nil {
			if err := r.insertApproval(ctx, tx, approval); err != nil {
				return err
			}
		}
		for i := range history {
			if err := r.insertHistory(ctx, tx, &history[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.Revision++
	m.UpdatedAt = ts
	return nil
}

// AppendPublishHistory records attempts that did not change the message state.
func (r *MessageRepository) AppendPublishHistory(ctx context.Context, rows ...model.PublishHistory) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for i := range rows {
			if err := r.insertHistory(ctx, tx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *MessageRepository) AddVersion(ctx context.Context, v *model.Version) error {
	if v.ID == "" {
		v.ID = newID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	_, err := r.DB.ExecContext(ctx, r.rebind(`
		INSERT INTO message_versions (id, message_id, version_profile, content, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		v.ID, v.MessageID, v.VersionProfile, v.Content, v.CreatedBy, v.CreatedAt.UTC())
	return err
}

func (r *MessageRepository) ListVersions(ctx context.Context, messageID string) ([]model.Version, error) {
	rows, err := r.DB.QueryContext(ctx, r.rebind(`
		SELECT id, message_id, version_profile, content, created_by, created_at
		FROM message_versions WHERE message_id = ?
		ORDER BY created_at ASC, id ASC`), messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []model.Version{}
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(&v.ID, &v.MessageID, &v.VersionProfile, &v.Content, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.CreatedAt = v.CreatedAt.UTC()
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ListApprovals returns the review log newest first.
func (r *MessageRepository) ListApprovals(ctx context.Context, messageID string) ([]model.Approval, error) {
	rows, err := r.DB.QueryContext(ctx, r.rebind(`
		SELECT id, message_id, status, comments, approved_by, created_at
		FROM approvals WHERE message_id = ?
		ORDER BY created_at DESC, id DESC`), messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approvals := []model.Approval{}
	for rows.Next() {
		var a model.Approval
		var status string
		if err := rows.Scan(&a.ID, &a.MessageID, &status, &a.Comments, &a.ApprovedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Status = model.ApprovalStatus(status)
		a.CreatedAt = a.CreatedAt.UTC()
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// ListPublishHistory returns attempts in the order they were made.
func (r *MessageRepository) ListPublishHistory(ctx context.Context, messageID string) ([]model.PublishHistory, error) {
	rows, err := r.DB.QueryContext(ctx, r.rebind(`
		SELECT id, message_id, platform, status, external_id, error, published_at, attempted_by, created_at
		FROM publish_history WHERE message_id = ?
		ORDER BY created_at ASC, id ASC`), messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.PublishHistory{}
	for rows.Next() {
		var (
			h                model.PublishHistory
			platform, status string
			published        sql.NullTime
		)
		if err := rows.Scan(&h.ID, &h.MessageID, &platform, &status, &h.ExternalID, &h.Error, &published, &h.AttemptedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Platform = model.Platform(platform)
		h.Status = model.PublishStatus(status)
		h.PublishedAt = timePtr(published)
		h.CreatedAt = h.CreatedAt.UTC()
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListDueScheduled returns SCHEDULED messages whose time has come, oldest first.
func (r *MessageRepository) ListDueScheduled(ctx context.Context, at time.Time, limit int) ([]*model.Message, error) {
	sel := r.builder().
		Select(messageColumns).
		From("messages").
		Where(sq.Eq{"status": string(model.StatusScheduled)}).
		Where(sq.LtOrEq{"scheduled_for": at.UTC()}).
		OrderBy("scheduled_for ASC", "id ASC")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryMessages(ctx, query, args...)
}

func (r *MessageRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*model.Message, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepository) insertApproval(ctx context.Context, tx *sql.Tx, a *model.Approval) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	_, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO approvals (id, message_id, status, comments, approved_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		a.ID, a.MessageID, string(a.Status), a.Comments, a.ApprovedBy, a.CreatedAt.UTC())
	return err
}

func (r *MessageRepository) insertHistory(ctx context.Context, tx *sql.Tx, h *model.PublishHistory) error {
	if h.ID == "" {
		h.ID = newID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now()
	}
	_, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO publish_history (id, message_id, platform, status, external_id, error, published_at, attempted_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		h.ID, h.MessageID, string(h.Platform), string(h.Status), h.ExternalID, h.Error,
		utcPtr(h.PublishedAt), h.AttemptedBy, h.CreatedAt.UTC())
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkRevision turns a zero-row optimistic update into ErrConflict, or not-found when
// the row is gone.
func (r *MessageRepository) checkRevision(ctx context.Context, q querier, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = q.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM messages WHERE id = ?`), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewMessageNotFound(id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("message %s was modified concurrently: %w", id, appErrors.ErrConflict)
}

func scanMessage(s scanner) (*model.Message, error) {
	var (
		m                    model.Message
		platform, status     string
		tier                 sql.NullString
		scheduled, published sql.NullTime
		reviewHash           string
	)
	if err := s.Scan(&m.ID, &m.CampaignID, &m.AuthorID, &m.Title, &m.Content, &platform, &status, &tier,
		&scheduled, &published, &reviewHash, &m.Revision, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Platform = model.Platform(platform)
	if tier.Valid && tier.String != "" {
		t := model.ApprovalTier(tier.String)
		m.ApprovalTier = &t
	}
	state, err := model.StateFromColumns(model.MessageStatus(status), timePtr(scheduled), timePtr(published), reviewHash)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", m.ID, err)
	}
	m.State = state
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func tierValue(t *model.ApprovalTier) any {
	if t == nil {
		return nil
	}
	return string(*t)
}
