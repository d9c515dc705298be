// internal/model/message_state.go
package model

import (
	"fmt"
	"time"
)

// MessageState is a closed set of lifecycle states. Fields that only make sense in one
// state live on that state's type, so a draft can never carry a schedule time.
type MessageState interface {
	Status() MessageStatus
	isMessageState()
}

type Draft struct{}

type PendingApproval struct{}

type Approved struct{}

type Rejected struct{}

// ChangesRequested remembers a hash of the content the reviewer saw so a resubmit
// can prove the content was modified.
type ChangesRequested struct {
	ReviewedContentHash string
}

type Scheduled struct {
	For time.Time
}

type Published struct {
	At time.Time
}

type Archived struct{}

func (Draft) Status() MessageStatus            { return StatusDraft }
func (PendingApproval) Status() MessageStatus  { return StatusPendingApproval }
func (Approved) Status() MessageStatus         { return StatusApproved }
func (Rejected) Status() MessageStatus         { return StatusRejected }
func (ChangesRequested) Status() MessageStatus { return StatusChangesRequested }
func (Scheduled) Status() MessageStatus        { return StatusScheduled }
func (Published) Status() MessageStatus        { return StatusPublished }
func (Archived) Status() MessageStatus         { return StatusArchived }

func (Draft) isMessageState()            {}
func (PendingApproval) isMessageState()  {}
func (Approved) isMessageState()         {}
func (Rejected) isMessageState()         {}
func (ChangesRequested) isMessageState() {}
func (Scheduled) isMessageState()        {}
func (Published) isMessageState()        {}
func (Archived) isMessageState()         {}

// StateColumns is the flat representation stored in the messages table.
type StateColumns struct {
	Status       MessageStatus
	ScheduledFor *time.Time
	PublishedAt  *time.Time
	ReviewHash   string
}

// Columns flattens a state for persistence.
func Columns(s MessageState) StateColumns {
	if s == nil {
		return StateColumns{Status: StatusDraft}
	}
	cols := StateColumns{Status: s.Status()}
	switch st := s.(type) {
	case Scheduled:
		t := st.For
		cols.ScheduledFor = &t
	case Published:
		t := st.At
		cols.PublishedAt = &t
	case ChangesRequested:
		cols.ReviewHash = st.ReviewedContentHash
	}
	return cols
}

// StateFromColumns rebuilds a typed state from stored columns.
func StateFromColumns(status MessageStatus, scheduledFor, publishedAt *time.Time, reviewHash string) (MessageState, error) {
	switch status {
	case StatusDraft, "":
		return Draft{}, nil
	case StatusPendingApproval:
		return PendingApproval{}, nil
	case StatusApproved:
		return Approved{}, nil
	case StatusRejected:
		return Rejected{}, nil
	case StatusChangesRequested:
		return ChangesRequested{ReviewedContentHash: reviewHash}, nil
	case StatusScheduled:
		if scheduledFor == nil {
			return nil, fmt.Errorf("scheduled message without scheduled_for")
		}
		return Scheduled{For: *scheduledFor}, nil
	case StatusPublished:
		if publishedAt == nil {
			return nil, fmt.Errorf("published message without published_at")
		}
		return Published{At: *publishedAt}, nil
	case StatusArchived:
		return Archived{}, nil
	}
	return nil, fmt.Errorf("unknown message status %q", status)
}
