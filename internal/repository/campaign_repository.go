package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	UpdateProfile(ctx context.Context, id string, profile model.CampaignProfile) error
	ListCampaigns(ctx context.Context, offset, limit int, search string) ([]*model.Campaign, int, error)
}

type CampaignRepository struct {
	store
}

func NewCampaignRepository(conn *sql.DB, driver string) *CampaignRepository {
	return &CampaignRepository{store{DB: conn, Driver: driver}}
}

const campaignColumns = "id, name, description, profile_json, created_at, updated_at"

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = now()
	c.UpdatedAt = nil

	profile, err := json.Marshal(c.Profile)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, r.rebind(`
		INSERT INTO campaigns (id, name, description, profile_json, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.Description, string(profile), c.CreatedAt)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, r.rebind(`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`), id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) UpdateProfile(ctx context.Context, id string, profile model.CampaignProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, r.rebind(`UPDATE campaigns SET profile_json = ?, updated_at = ? WHERE id = ?`),
		string(raw), now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

// ListCampaigns returns a page of campaigns, newest first, plus the total match count.
func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, search string) ([]*model.Campaign, int, error) {
	where := sq.And{}
	if s := strings.TrimSpace(search); s != "" {
		where = append(where, sq.Like{"LOWER(name)": "%" + strings.ToLower(s) + "%"})
	}

	query, args, err := r.builder().
		Select(campaignColumns).
		From("campaigns").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := r.builder().Select("COUNT(*)").From("campaigns").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func scanCampaign(s scanner) (*model.Campaign, error) {
	var (
		c       model.Campaign
		profile string
		updated sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &profile, &c.CreatedAt, &updated); err != nil {
		return nil, err
	}
	if profile != "" {
		if err := json.Unmarshal([]byte(profile), &c.Profile); err != nil {
			return nil, fmt.Errorf("campaign %s profile: %w", c.ID, err)
		}
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = timePtr(updated)
	return &c, nil
}
