// Package prompt renders the instruction block sent to the text-generation service when a
// message is adapted for an audience segment.
package prompt

import (
	"fmt"
	"strings"

	"github.com/unclebandit/campaignhq-backend/internal/audience"
	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

// Fallback text used when the campaign profile leaves a field blank.
const (
	defaultCandidateName = "the candidate"
	defaultOffice        = "public office"
	defaultParty         = "not specified"
	defaultDistrict      = "the district"
	defaultBackground    = "a dedicated public servant committed to the community"
	defaultExperience    = "a record of community leadership"
	defaultSpeakingStyle = "conversational"
	defaultTone          = "warm and confident"
	defaultVocabulary    = "plain, accessible language"
	defaultTheme         = "building a better future for everyone"
	defaultSlogan        = "no official slogan"
	defaultNone          = "none specified"
)

var closingDirectives = [9]string{
	"Rewrite the original message for the audience described above without changing its core facts or commitments.",
	"Match the audience tone and respect the formality, technicality and emotion levels given on the 1-10 scale.",
	"Lead with the emphasis topics that are relevant to the original message.",
	"Do not mention or allude to any of the topics to avoid.",
	"Speak to the audience's values and concerns using their preferred language where it fits naturally.",
	"Keep the candidate's voice, speaking style and signature phrases consistent.",
	"Keep the length within 20 percent of the original message.",
	"Preserve any HTML structure, links and calls to action from the original message.",
	"Return only the adapted message content with no commentary or explanation.",
}

// Compile combines a campaign profile and an audience profile into a single instruction
// block. It is deterministic and never fails: missing campaign fields are replaced by
// generic filler so every section is always present.
func Compile(c model.CampaignProfile, a audience.Profile) string {
	var b strings.Builder

	b.WriteString("You are adapting a political campaign message for a specific audience.\n\n")

	b.WriteString("## Candidate Profile\n")
	fmt.Fprintf(&b, "Name: %s\n", or(c.Candidate.Name, defaultCandidateName))
	fmt.Fprintf(&b, "Running for: %s\n", or(c.Candidate.Office, defaultOffice))
	fmt.Fprintf(&b, "Party: %s\n", or(c.Candidate.Party, defaultParty))
	fmt.Fprintf(&b, "District: %s\n", or(c.Candidate.District, defaultDistrict))
	fmt.Fprintf(&b, "Background: %s\n", or(c.Personal.Background, defaultBackground))
	if c.Personal.Hometown != "" {
		fmt.Fprintf(&b, "Hometown: %s\n", c.Personal.Hometown)
	}
	if c.Personal.Profession != "" {
		fmt.Fprintf(&b, "Profession: %s\n", c.Personal.Profession)
	}
	if c.Personal.Education != "" {
		fmt.Fprintf(&b, "Education: %s\n", c.Personal.Education)
	}
	if c.Personal.Family != "" {
		fmt.Fprintf(&b, "Family: %s\n", c.Personal.Family)
	}
	fmt.Fprintf(&b, "Political experience: %s\n", or(c.Political.Experience, defaultExperience))
	fmt.Fprintf(&b, "Previous offices: %s\n", joinOr(c.Political.PreviousOffices, defaultNone))
	fmt.Fprintf(&b, "Key achievements: %s\n", joinOr(c.Political.Achievements, defaultNone))
	fmt.Fprintf(&b, "Speaking style: %s\n", or(c.Communication.SpeakingStyle, defaultSpeakingStyle))
	fmt.Fprintf(&b, "Preferred tone: %s\n", or(c.Communication.Tone, defaultTone))
	fmt.Fprintf(&b, "Vocabulary: %s\n", or(c.Communication.Vocabulary, defaultVocabulary))
	fmt.Fprintf(&b, "Signature phrases: %s\n", joinOr(c.Communication.Catchphrases, defaultNone))
	b.WriteString("\n")

	b.WriteString("## Audience Profile\n")
	fmt.Fprintf(&b, "Audience: %s (%s)\n", a.Name, a.ID)
	fmt.Fprintf(&b, "Description: %s\n", or(a.Description, defaultNone))
	fmt.Fprintf(&b, "Tone: %s\n", or(a.Tone, defaultTone))
	fmt.Fprintf(&b, "Formality: %d/10\n", a.MessagingAdjustments.Formality)
	fmt.Fprintf(&b, "Technicality: %d/10\n", a.MessagingAdjustments.Technicality)
	fmt.Fprintf(&b, "Emotion: %d/10\n", a.MessagingAdjustments.Emotion)
	b.WriteString("\n")

	writeList(&b, "Topics to Emphasize", merge(a.Emphasis, c.Policy.TopPriorities), "the candidate's core message")
	writeList(&b, "Topics to Avoid", merge(a.Avoid, c.Communication.AvoidTopics), defaultNone)
	writeList(&b, "Audience Values", a.AudienceTraits.Values, "shared community values")
	writeList(&b, "Audience Concerns", a.AudienceTraits.Concerns, "everyday quality-of-life issues")
	writeList(&b, "Preferred Language and Phrases", a.AudienceTraits.Language, "clear, everyday language")

	b.WriteString("## Campaign Context\n")
	fmt.Fprintf(&b, "Theme: %s\n", or(c.Campaign.Theme, defaultTheme))
	fmt.Fprintf(&b, "Slogan: %s\n", or(c.Campaign.Slogan, defaultSlogan))
	fmt.Fprintf(&b, "Key messages: %s\n", joinOr(c.Campaign.KeyMessages, defaultNone))
	fmt.Fprintf(&b, "Policy positions: %s\n", joinOr(c.Policy.Positions, defaultNone))
	if c.Campaign.ElectionDate != "" {
		fmt.Fprintf(&b, "Election date: %s\n", c.Campaign.ElectionDate)
	}
	b.WriteString("\n")

	b.WriteString("## Instructions\n")
	for i, d := range closingDirectives {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}

	return b.String()
}

// Compiler resolves audience ids against a registry before compiling.
type Compiler struct {
	Registry *audience.Registry
}

func NewCompiler(reg *audience.Registry) *Compiler {
	return &Compiler{Registry: reg}
}

// CompileFor compiles the prompt for the audience with the given id.
func (c *Compiler) CompileFor(profile model.CampaignProfile, audienceID string) (string, error) {
	a, ok := c.Registry.Get(audienceID)
	if !ok {
		return "", fmt.Errorf("audience profile %s: %w", audienceID, appErrors.ErrNotFound)
	}
	return Compile(profile, a), nil
}

func writeList(b *strings.Builder, heading string, items []string, fallback string) {
	fmt.Fprintf(b, "## %s\n", heading)
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s\n\n", fallback)
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// merge appends extra items that are not already present (case-insensitive), keeping order.
func merge(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			key := strings.ToLower(s)
			if s == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func joinOr(items []string, fallback string) string {
	var kept []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, "; ")
}
