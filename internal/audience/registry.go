// Package audience holds the catalog of audience segments that messages are adapted for.
// The catalog is read once at startup and never mutated afterwards.
package audience

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogIDs is the fixed set and order every catalog must carry.
var catalogIDs = []string{"union", "chamber", "youth", "senior", "rural", "urban"}

// Profile is one audience segment.
type Profile struct {
	ID                   string      `yaml:"id" json:"id"`
	Name                 string      `yaml:"name" json:"name"`
	Description          string      `yaml:"description" json:"description"`
	Tone                 string      `yaml:"tone" json:"tone"`
	Emphasis             []string    `yaml:"emphasis" json:"emphasis"`
	Avoid                []string    `yaml:"avoid" json:"avoid"`
	AudienceTraits       Traits      `yaml:"audienceTraits" json:"audienceTraits"`
	MessagingAdjustments Adjustments `yaml:"messagingAdjustments" json:"messagingAdjustments"`
}

type Traits struct {
	Values   []string `yaml:"values" json:"values"`
	Concerns []string `yaml:"concerns" json:"concerns"`
	Language []string `yaml:"language" json:"language"`
}

// Adjustments are 1-10 sliders. Values outside that range are kept as-is.
type Adjustments struct {
	Formality    int `yaml:"formality" json:"formality"`
	Technicality int `yaml:"technicality" json:"technicality"`
	Emotion      int `yaml:"emotion" json:"emotion"`
}

// Registry is an immutable, ordered catalog of profiles.
type Registry struct {
	profiles []Profile
	index    map[string]int
}

type catalogFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Load parses a catalog document.
func Load(r io.Reader) (*Registry, error) {
	var doc catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid audience catalog: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("audience catalog has no profiles")
	}
	reg := &Registry{index: make(map[string]int, len(doc.Profiles))}
	for _, p := range doc.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("audience profile %q has no id", p.Name)
		}
		if _, dup := reg.index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate audience profile id %s", p.ID)
		}
		reg.index[p.ID] = len(reg.profiles)
		reg.profiles = append(reg.profiles, p)
	}
	return reg, nil
}

// Default returns the registry built from the embedded catalog.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// FromFile loads an override catalog, falling back to the embedded one when path is empty.
// An override may reword profiles but must keep the standard ids in the standard order.
func FromFile(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reg, err := Load(f)
	if err != nil {
		return nil, err
	}
	if ids := reg.IDs(); !slices.Equal(ids, catalogIDs) {
		return nil, fmt.Errorf("audience catalog %s: profiles must be %v in that order, got %v", path, catalogIDs, ids)
	}
	return reg, nil
}

// List returns every profile in catalog order.
func (r *Registry) List() []Profile {
	out := make([]Profile, len(r.profiles))
	for i, p := range r.profiles {
		out[i] = p.clone()
	}
	return out
}

// Get looks a profile up by id.
func (r *Registry) Get(id string) (Profile, bool) {
	i, ok := r.index[id]
	if !ok {
		return Profile{}, false
	}
	return r.profiles[i].clone(), true
}

// IDs returns profile ids in catalog order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		ids[i] = p.ID
	}
	return ids
}

func (p Profile) clone() Profile {
	p.Emphasis = append([]string(nil), p.Emphasis...)
	p.Avoid = append([]string(nil), p.Avoid...)
	p.AudienceTraits.Values = append([]string(nil), p.AudienceTraits.Values...)
	p.AudienceTraits.Concerns = append([]string(nil), p.AudienceTraits.Concerns...)
	p.AudienceTraits.Language = append([]string(nil), p.AudienceTraits.Language...)
	return p
}
