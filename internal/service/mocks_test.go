package service_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/repository"
)

// Mock campaign repository
type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
	seq       int
	gets      int
}

func NewMockCampaignRepo() *MockCampaignRepo {
	return &MockCampaignRepo{campaigns: map[string]*model.Campaign{}}
}

func (m *MockCampaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("c%d", m.seq)
	}
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) UpdateProfile(ctx context.Context, id string, profile model.CampaignProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Profile = profile
	return nil
}

func (m *MockCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int, search string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range m.campaigns {
		if search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MockCampaignRepo) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Mock message repository with the same revision discipline as the SQL one.
type MockMessageRepo struct {
	mu        sync.Mutex
	messages  map[string]model.Message
	versions  []model.Version
	approvals []model.Approval
	history   []model.PublishHistory
	seq       int

	GetErr  error
	SaveErr error
}

var _ repository.MessageRepositoryInterface = (*MockMessageRepo)(nil)

func NewMockMessageRepo() *MockMessageRepo {
	return &MockMessageRepo{messages: map[string]model.Message{}}
}

func (m *MockMessageRepo) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = m.nextID("m")
	}
	if msg.State == nil {
		msg.State = model.Draft{}
	}
	msg.Revision = 1
	msg.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	msg.UpdatedAt = msg.CreatedAt
	m.messages[msg.ID] = *msg
	return nil
}

func (m *MockMessageRepo) GetByID(ctx context.Context, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	msg, ok := m.messages[id]
	if !ok {
		return nil, appErrors.NewMessageNotFound(id)
	}
	return &msg, nil
}

func (m *MockMessageRepo) List(ctx context.Context, f repository.MessageFilter) ([]*model.Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []*model.Message{}
	for _, msg := range m.messages {
		if f.CampaignID != "" && msg.CampaignID != f.CampaignID {
			continue
		}
		if f.Status != "" && msg.Status() != f.Status {
			continue
		}
		if f.Platform != "" && msg.Platform != f.Platform {
			continue
		}
		cp := msg
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if f.Offset >= total {
		return []*model.Message{}, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (m *MockMessageRepo) checkRevision(msg *model.Message) error {
	stored, ok := m.messages[msg.ID]
	if !ok {
		return appErrors.NewMessageNotFound(msg.ID)
	}
	if stored.Revision != msg.Revision {
		return fmt.Errorf("message %s changed concurrently: %w", msg.ID, appErrors.ErrConflict)
	}
	return nil
}

func (m *MockMessageRepo) UpdateContent(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRevision(msg); err != nil {
		return err
	}
	stored := m.messages[msg.ID]
	stored.Title, stored.Content, stored.ApprovalTier = msg.Title, msg.Content, msg.ApprovalTier
	stored.Revision++
	m.messages[msg.ID] = stored
	msg.Revision++
	return nil
}

func (m *MockMessageRepo) Delete(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRevision(msg); err != nil {
		return err
	}
	delete(m.messages, msg.ID)
	return nil
}

func (m *MockMessageRepo) SaveTransition(ctx context.Context, msg *model.Message, approval *model.Approval, history []model.PublishHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := m.checkRevision(msg); err != nil {
		return err
	}
	stored := m.messages[msg.ID]
	stored.State = msg.State
	stored.Revision++
	m.messages[msg.ID] = stored
	if approval != nil {
		a := *approval
		a.ID = m.nextID("a")
		approval.ID = a.ID
		m.approvals = append(m.approvals, a)
	}
	for _, h := range history {
		h.ID = m.nextID("h")
		m.history = append(m.history, h)
	}
	msg.Revision++
	return nil
}

func (m *MockMessageRepo) AppendPublishHistory(ctx context.Context, rows ...model.PublishHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range rows {
		h.ID = m.nextID("h")
		m.history = append(m.history, h)
	}
	return nil
}

func (m *MockMessageRepo) AddVersion(ctx context.Context, v *model.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.nextID("v")
	m.versions = append(m.versions, *v)
	return nil
}

func (m *MockMessageRepo) ListVersions(ctx context.Context, messageID string) ([]model.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Version{}
	for _, v := range m.versions {
		if v.MessageID == messageID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockMessageRepo) ListApprovals(ctx context.Context, messageID string) ([]model.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Approval{}
	for i := len(m.approvals) - 1; i >= 0; i-- {
		if m.approvals[i].MessageID == messageID {
			out = append(out, m.approvals[i])
		}
	}
	return out, nil
}

func (m *MockMessageRepo) ListPublishHistory(ctx context.Context, messageID string) ([]model.PublishHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PublishHistory{}
	for _, h := range m.history {
		if h.MessageID == messageID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MockMessageRepo) ListDueScheduled(ctx context.Context, at time.Time, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Message{}
	for _, msg := range m.messages {
		if s, ok := msg.State.(model.Scheduled); ok && !s.For.After(at) {
			cp := msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores a message as-is, bypassing Create defaults.
func (m *MockMessageRepo) Put(msg model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Revision == 0 {
		msg.Revision = 1
	}
	m.messages[msg.ID] = msg
}
