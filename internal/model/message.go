// internal/model/message.go
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Platform string

const (
	PlatformEmail        Platform = "EMAIL"
	PlatformFacebook     Platform = "FACEBOOK"
	PlatformTwitter      Platform = "TWITTER"
	PlatformInstagram    Platform = "INSTAGRAM"
	PlatformPressRelease Platform = "PRESS_RELEASE"
	PlatformWebsite      Platform = "WEBSITE"
	PlatformSMS          Platform = "SMS"
)

var Platforms = []Platform{
	PlatformEmail, PlatformFacebook, PlatformTwitter, PlatformInstagram,
	PlatformPressRelease, PlatformWebsite, PlatformSMS,
}

func (p Platform) Valid() bool {
	for _, v := range Platforms {
		if p == v {
			return true
		}
	}
	return false
}

type MessageStatus string

const (
	StatusDraft            MessageStatus = "DRAFT"
	StatusPendingApproval  MessageStatus = "PENDING_APPROVAL"
	StatusApproved         MessageStatus = "APPROVED"
	StatusRejected         MessageStatus = "REJECTED"
	StatusChangesRequested MessageStatus = "CHANGES_REQUESTED"
	StatusScheduled        MessageStatus = "SCHEDULED"
	StatusPublished        MessageStatus = "PUBLISHED"
	StatusArchived         MessageStatus = "ARCHIVED"
)

// Terminal reports whether no further transitions leave the status.
func (s MessageStatus) Terminal() bool {
	return s == StatusPublished || s == StatusArchived
}

// ApprovalTier is the risk classification attached by external content analysis.
type ApprovalTier string

const (
	TierGreen  ApprovalTier = "GREEN"
	TierYellow ApprovalTier = "YELLOW"
	TierRed    ApprovalTier = "RED"
)

func (t ApprovalTier) Valid() bool {
	return t == TierGreen || t == TierYellow || t == TierRed
}

// Message is an outbound communication owned by a campaign.
type Message struct {
	ID           string        `db:"id"`
	CampaignID   string        `db:"campaign_id"`
	AuthorID     string        `db:"author_id"`
	Title        string        `db:"title"`
	Content      string        `db:"content"`
	Platform     Platform      `db:"platform"`
	ApprovalTier *ApprovalTier `db:"approval_tier"`
	State        MessageState  `db:"-"`
	Revision     int           `db:"revision"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

func (m *Message) Status() MessageStatus {
	if m.State == nil {
		return StatusDraft
	}
	return m.State.Status()
}

// ScheduledFor is only set while the message is SCHEDULED.
func (m *Message) ScheduledFor() *time.Time {
	if s, ok := m.State.(Scheduled); ok {
		t := s.For
		return &t
	}
	return nil
}

// PublishedAt is only set once the message is PUBLISHED.
func (m *Message) PublishedAt() *time.Time {
	if p, ok := m.State.(Published); ok {
		t := p.At
		return &t
	}
	return nil
}

type messageJSON struct {
	ID           string        `json:"id"`
	CampaignID   string        `json:"campaignId"`
	AuthorID     string        `json:"authorId"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Platform     Platform      `json:"platform"`
	Status       MessageStatus `json:"status"`
	ApprovalTier *ApprovalTier `json:"approvalTier,omitempty"`
	ScheduledFor *time.Time    `json:"scheduledFor,omitempty"`
	PublishedAt  *time.Time    `json:"publishedAt,omitempty"`
	Revision     int           `json:"revision"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:           m.ID,
		CampaignID:   m.CampaignID,
		AuthorID:     m.AuthorID,
		Title:        m.Title,
		Content:      m.Content,
		Platform:     m.Platform,
		Status:       m.Status(),
		ApprovalTier: m.ApprovalTier,
		ScheduledFor: m.ScheduledFor(),
		PublishedAt:  m.PublishedAt(),
		Revision:     m.Revision,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state, err := StateFromColumns(raw.Status, raw.ScheduledFor, raw.PublishedAt, "")
	if err != nil {
		return err
	}
	*m = Message{
		ID:           raw.ID,
		CampaignID:   raw.CampaignID,
		AuthorID:     raw.AuthorID,
		Title:        raw.Title,
		Content:      raw.Content,
		Platform:     raw.Platform,
		ApprovalTier: raw.ApprovalTier,
		State:        state,
		Revision:     raw.Revision,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
	}
	return nil
}

// Version is one audience-adapted variant of a message. Never edited after insert.
type Version struct {
	ID             string    `db:"id" json:"id"`
	MessageID      string    `db:"message_id" json:"messageId"`
	VersionProfile string    `db:"version_profile" json:"versionProfile"`
	Content        string    `db:"content" json:"content"`
	CreatedBy      string    `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "PENDING"
	ApprovalApproved         ApprovalStatus = "APPROVED"
	ApprovalRejected         ApprovalStatus = "REJECTED"
	ApprovalChangesRequested ApprovalStatus = "CHANGES_REQUESTED"
)

// Approval is one entry of a message's review log.
type Approval struct {
	ID         string         `db:"id" json:"id"`
	MessageID  string         `db:"message_id" json:"messageId"`
	Status     ApprovalStatus `db:"status" json:"status"`
	Comments   string         `db:"comments" json:"comments,omitempty"`
	ApprovedBy string         `db:"approved_by" json:"approvedBy"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

type PublishStatus string

const (
	PublishSuccess PublishStatus = "SUCCESS"
	PublishFailed  PublishStatus = "FAILED"
)

// PublishHistory records a single publish attempt against one platform.
type PublishHistory struct {
	ID          string        `db:"id" json:"id"`
	MessageID   string        `db:"message_id" json:"messageId"`
	Platform    Platform      `db:"platform" json:"platform"`
	Status      PublishStatus `db:"status" json:"status"`
	ExternalID  string        `db:"external_id" json:"externalId,omitempty"`
	Error       string        `db:"error" json:"error,omitempty"`
	PublishedAt *time.Time    `db:"published_at" json:"publishedAt,omitempty"`
	AttemptedBy string        `db:"attempted_by" json:"attemptedBy"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleStaff     Role = "STAFF"
	RoleVolunteer Role = "VOLUNTEER"
)

// Actor is the campaign member performing an action.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s(%s)", a.ID, a.Role)
}
