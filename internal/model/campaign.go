// internal/model/campaign.go
package model

import "time"

type Campaign struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Profile     CampaignProfile `db:"profile_json" json:"profile"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignProfile describes the candidate behind a campaign. Every field is optional;
// the prompt compiler substitutes filler text for anything left blank.
type CampaignProfile struct {
	Candidate     CandidateInfo     `json:"candidate"`
	Personal      PersonalInfo      `json:"personal"`
	Political     PoliticalHistory  `json:"political"`
	Campaign      CampaignTheme     `json:"campaign"`
	Communication CommunicationPref `json:"communication"`
	Policy        PolicyPriorities  `json:"policy"`
}

type CandidateInfo struct {
	Name     string `json:"name,omitempty"`
	Office   string `json:"office,omitempty"`
	Party    string `json:"party,omitempty"`
	District string `json:"district,omitempty"`
}

type PersonalInfo struct {
	Background string `json:"background,omitempty"`
	Hometown   string `json:"hometown,omitempty"`
	Family     string `json:"family,omitempty"`
	Profession string `json:"profession,omitempty"`
	Education  string `json:"education,omitempty"`
}

type PoliticalHistory struct {
	Experience      string   `json:"experience,omitempty"`
	PreviousOffices []string `json:"previousOffices,omitempty"`
	Achievements    []string `json:"achievements,omitempty"`
}

type CampaignTheme struct {
	Theme        string   `json:"theme,omitempty"`
	Slogan       string   `json:"slogan,omitempty"`
	KeyMessages  []string `json:"keyMessages,omitempty"`
	ElectionDate string   `json:"electionDate,omitempty"`
}

type CommunicationPref struct {
	SpeakingStyle string   `json:"speakingStyle,omitempty"`
	Tone          string   `json:"tone,omitempty"`
	Vocabulary    string   `json:"vocabulary,omitempty"`
	Catchphrases  []string `json:"catchphrases,omitempty"`
	AvoidTopics   []string `json:"avoidTopics,omitempty"`
}

type PolicyPriorities struct {
	TopPriorities []string `json:"topPriorities,omitempty"`
	Positions     []string `json:"positions,omitempty"`
}
