// Package provider holds the platform adapters a message is handed to at publish time.
package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/unclebandit/campaignhq-backend/internal/config"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

type SendStatus string

const (
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

type SendRequest struct {
	Recipients []string
	Subject    string
	Content    string
	Metadata   map[string]string
}

// SendResult is what the platform reported. A provider that rejects a send returns
// Status failed with Error set and a nil error; the error return is for transport faults.
type SendResult struct {
	Status SendStatus
	ID     string
	Error  string
}

type Provider interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// Registry maps platforms to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.Platform]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[model.Platform]Provider)}
}

func (r *Registry) Register(p model.Platform, prov Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p] = prov
}

// For returns the provider bound to the platform for a campaign. Every campaign shares
// the process-wide bindings today.
func (r *Registry) For(campaignID string, p model.Platform) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prov, ok := r.providers[p]
	return prov, ok
}

// FromConfig wires SendGrid for EMAIL when an API key is present, the mock provider for
// the configured mock platforms, and stubs for every other platform.
func FromConfig(cfg config.ProvidersConfig) *Registry {
	reg := NewRegistry()
	for _, p := range model.Platforms {
		reg.Register(p, Stub{Platform: p})
	}
	if cfg.Email.SendGridAPIKey != "" {
		reg.Register(model.PlatformEmail, NewSendGridEmail(cfg.Email))
	}
	for _, raw := range strings.Split(cfg.MockPlatforms, ",") {
		p := model.Platform(strings.ToUpper(strings.TrimSpace(raw)))
		if p.Valid() {
			reg.Register(p, &Mock{FailureRate: cfg.MockFailureRate})
		}
	}
	return reg
}

// Stub stands in for platforms without an integration.
type Stub struct {
	Platform model.Platform
}

func (s Stub) Name() string { return "stub" }

func (s Stub) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	return SendResult{Status: StatusFailed, Error: fmt.Sprintf("%s publishing is not implemented", s.Platform)}, nil
}

// Mock simulates a platform. FailureRate is the probability in [0,1] that a send is rejected.
type Mock struct {
	FailureRate float64

	mu   sync.Mutex
	Sent []SendRequest
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}
	if m.FailureRate > 0 && rand.Float64() < m.FailureRate {
		return SendResult{Status: StatusFailed, Error: "mock sending failed"}, nil
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, req)
	m.mu.Unlock()
	return SendResult{Status: StatusSent, ID: "mock-" + uuid.NewString()}, nil
}

// SentCount is safe to call while sends are in flight.
func (m *Mock) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
