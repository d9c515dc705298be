package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaignhq-backend/internal/audience"
	"github.com/unclebandit/campaignhq-backend/internal/authz"
	"github.com/unclebandit/campaignhq-backend/internal/cache"
	"github.com/unclebandit/campaignhq-backend/internal/events"
	"github.com/unclebandit/campaignhq-backend/internal/lifecycle"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/prompt"
	"github.com/unclebandit/campaignhq-backend/internal/provider"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

var (
	owner     = model.Actor{ID: "u-owner", Role: model.RoleOwner}
	manager   = model.Actor{ID: "u-manager", Role: model.RoleManager}
	staff     = model.Actor{ID: "u-staff", Role: model.RoleStaff}
	volunteer = model.Actor{ID: "u-volunteer", Role: model.RoleVolunteer}
)

type fakeGenerator struct {
	out          string
	err          error
	instructions string
}

func (g *fakeGenerator) Generate(ctx context.Context, instructions, content string) (string, error) {
	g.instructions = instructions
	if g.err != nil {
		return "", g.err
	}
	return g.out, nil
}

// failingProvider rejects every send the way a bouncing email API would.
type failingProvider struct{ reason string }

func (p failingProvider) Name() string { return "failing" }

func (p failingProvider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	return provider.SendResult{Status: provider.StatusFailed, Error: p.reason}, nil
}

// hangingProvider only returns once its context is done.
type hangingProvider struct{}

func (hangingProvider) Name() string { return "hanging" }

func (hangingProvider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	<-ctx.Done()
	return provider.SendResult{}, ctx.Err()
}

type brokenProvider struct{}

func (brokenProvider) Name() string { return "broken" }

func (brokenProvider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	return provider.SendResult{}, errors.New("connection refused")
}

type fixture struct {
	clock      time.Time
	campaigns  *MockCampaignRepo
	messages   *MockMessageRepo
	providers  *provider.Registry
	email      *provider.Mock
	events     *events.Recorder
	generator  *fakeGenerator
	campaign   *service.CampaignService
	svc        *service.MessageService
	dispatcher *service.Dispatcher
	campaignID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg, err := audience.Default()
	require.NoError(t, err)
	az, err := authz.New()
	require.NoError(t, err)

	f := &fixture{
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		campaigns: NewMockCampaignRepo(),
		messages:  NewMockMessageRepo(),
		providers: provider.NewRegistry(),
		email:     &provider.Mock{},
		events:    &events.Recorder{},
		generator: &fakeGenerator{out: "adapted content"},
	}
	f.providers.Register(model.PlatformEmail, f.email)

	machine := &lifecycle.Machine{Now: func() time.Time { return f.clock }}
	compiler := prompt.NewCompiler(reg)

	f.campaign = &service.CampaignService{
		CampaignRepo: f.campaigns,
		Authz:        az,
		Compiler:     compiler,
		Cache:        cache.NewMemory(),
		ProfileTTL:   time.Minute,
	}
	f.svc = &service.MessageService{
		Repo:      f.messages,
		Campaigns: f.campaign,
		Authz:     az,
		Machine:   machine,
		Compiler:  compiler,
		Generator: f.generator,
		Events:    f.events,
	}
	f.dispatcher = &service.Dispatcher{
		Repo:      f.messages,
		Providers: f.providers,
		Authz:     az,
		Machine:   machine,
		Events:    f.events,
		Timeout:   time.Second,
	}

	c, err := f.campaign.CreateCampaign(context.Background(), owner, "Jane for Senate", "", model.CampaignProfile{
		Candidate: model.CandidateInfo{Name: "Jane Doe", Office: "State Senate"},
	})
	require.NoError(t, err)
	f.campaignID = c.ID
	return f
}

func (f *fixture) draft(t *testing.T, content string) *model.Message {
	t.Helper()
	msg, err := f.svc.CreateMessage(context.Background(), staff, service.CreateMessageInput{
		CampaignID: f.campaignID,
		Title:      "Rally",
		Content:    content,
		Platform:   model.PlatformEmail,
	})
	require.NoError(t, err)
	return msg
}

func (f *fixture) approved(t *testing.T, content string) *model.Message {
	t.Helper()
	ctx := context.Background()
	msg := f.draft(t, content)
	_, err := f.svc.Submit(ctx, staff, msg.ID)
	require.NoError(t, err)
	msg, err = f.svc.Approve(ctx, manager, msg.ID, "")
	require.NoError(t, err)
	return msg
}

func (f *fixture) status(t *testing.T, id string) model.MessageStatus {
	t.Helper()
	msg, err := f.messages.GetByID(context.Background(), id)
	require.NoError(t, err)
	return msg.Status()
}
