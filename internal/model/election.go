// internal/model/election.go
package model

import "encoding/json"

// County is one row of the county boundary import, keyed by FIPS code.
type County struct {
	FIPS     string          `db:"fips" json:"fips"`
	Name     string          `db:"name" json:"name"`
	State    string          `db:"state" json:"state"`
	Geometry json.RawMessage `db:"geometry" json:"geometry,omitempty"`
}

// ElectionResult holds one county-year vote tally, keyed by (FIPS, Year).
type ElectionResult struct {
	FIPS       string `db:"fips" json:"fips"`
	Year       int    `db:"year" json:"year"`
	County     string `db:"county" json:"county,omitempty"`
	State      string `db:"state" json:"state,omitempty"`
	Democratic int    `db:"democratic" json:"democratic"`
	Republican int    `db:"republican" json:"republican"`
	Other      int    `db:"other" json:"other"`
	Total      int    `db:"total" json:"total"`
}
