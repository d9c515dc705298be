// Package importer loads historical election results and county boundaries.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/unclebandit/campaignhq-backend/internal/model"
)

const (
	FormatLong    = "long"
	FormatWide    = "wide"
	FormatGeoJSON = "geojson"

	censusCountyPrefix = "0500000US"
)

var wideColumn = regexp.MustCompile(`^(\d{4})_([DROT])$`)

// RowError describes one input row that could not be imported.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// NormalizeFIPS strips the census county prefix and left-pads to five digits.
func NormalizeFIPS(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, censusCountyPrefix)
	if s == "" {
		return ""
	}
	if len(s) < 5 {
		s = strings.Repeat("0", 5-len(s)) + s
	}
	return s
}

// DetectFormat reports wide when any header is a year-coded column like 2020_D.
func DetectFormat(header []string) string {
	for _, h := range header {
		if wideColumn.MatchString(strings.TrimSpace(h)) {
			return FormatWide
		}
	}
	return FormatLong
}

// ParseResultsCSV reads a long or wide results file. Bad rows are reported and skipped.
func ParseResultsCSV(r io.Reader) ([]model.ElectionResult, []RowError, error) {
	_, results, rowErrs, _, err := parseResults(r)
	return results, rowErrs, err
}

func parseResults(r io.Reader) (format string, results []model.ElectionResult, rowErrs []RowError, rows int, err error) {
	rd := csv.NewReader(r)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, nil, 0, errors.New("empty results file")
		}
		return "", nil, nil, 0, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	format = DetectFormat(header)
	cols := indexColumns(header)
	if _, ok := cols["fips"]; !ok {
		return format, nil, nil, 0, errors.New("results file has no fips column")
	}

	for {
		record, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rowErrs = append(rowErrs, RowError{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return format, results, rowErrs, rows, err
		}
		if blank(record) {
			continue
		}
		line, _ := rd.FieldPos(0)
		rows++

		var parsed []model.ElectionResult
		var rowErr error
		if format == FormatWide {
			parsed, rowErr = wideRow(header, cols, record)
		} else {
			var res model.ElectionResult
			res, rowErr = longRow(cols, record)
			parsed = []model.ElectionResult{res}
		}
		if rowErr != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: rowErr.Error()})
			continue
		}
		results = append(results, parsed...)
	}
	return format, results, rowErrs, rows, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		switch key {
		case "dem":
			key = "democratic"
		case "rep":
			key = "republican"
		case "county_fips", "geoid", "geo_id":
			key = "fips"
		case "county_name":
			key = "county"
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func field(cols map[string]int, record []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseCount(name, v string) (int, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil && f == float64(int(f)) {
			n, err = int(f), nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative %s %d", name, n)
	}
	return n, nil
}

func longRow(cols map[string]int, record []string) (model.ElectionResult, error) {
	res := model.ElectionResult{
		FIPS:   NormalizeFIPS(field(cols, record, "fips")),
		County: field(cols, record, "county"),
		State:  field(cols, record, "state"),
	}
	if res.FIPS == "" {
		return res, errors.New("missing fips")
	}
	year, err := strconv.Atoi(field(cols, record, "year"))
	if err != nil || year <= 0 {
		return res, fmt.Errorf("invalid year %q", field(cols, record, "year"))
	}
	res.Year = year

	if res.Democratic, err = parseCount("democratic", field(cols, record, "democratic")); err != nil {
		return res, err
	}
	if res.Republican, err = parseCount("republican", field(cols, record, "republican")); err != nil {
		return res, err
	}
	if res.Other, err = parseCount("other", field(cols, record, "other")); err != nil {
		return res, err
	}
	if res.Total, err = parseCount("total", field(cols, record, "total")); err != nil {
		return res, err
	}
	if res.Total == 0 {
		res.Total = res.Democratic + res.Republican + res.Other
	}
	return res, nil
}

// wideRow expands one county row into a result per year column group.
func wideRow(header []string, cols map[string]int, record []string) ([]model.ElectionResult, error) {
	fips := NormalizeFIPS(field(cols, record, "fips"))
	if fips == "" {
		return nil, errors.New("missing fips")
	}
	county := field(cols, record, "county")
	state := field(cols, record, "state")

	byYear := map[int]*model.ElectionResult{}
	totalSet := map[int]bool{}
	for i, h := range header {
		m := wideColumn.FindStringSubmatch(strings.TrimSpace(h))
		if m == nil || i >= len(record) {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		n, err := parseCount(h, record[i])
		if err != nil {
			return nil, err
		}
		res, ok := byYear[year]
		if !ok {
			res = &model.ElectionResult{FIPS: fips, Year: year, County: county, State: state}
			byYear[year] = res
		}
		switch m[2] {
		case "D":
			res.Democratic = n
		case "R":
			res.Republican = n
		case "O":
			res.Other = n
		case "T":
			res.Total = n
			totalSet[year] = n > 0
		}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]model.ElectionResult, 0, len(years))
	for _, y := range years {
		res := byYear[y]
		if !totalSet[y] {
			res.Total = res.Democratic + res.Republican + res.Other
		}
		out = append(out, *res)
	}
	return out, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ParseCountiesGeoJSON reads a FeatureCollection of county shapes. The FIPS code comes
// from GEO_ID, GEOID, or STATE+COUNTY properties, in that order.
func ParseCountiesGeoJSON(r io.Reader) ([]model.County, []RowError, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	var (
		counties []model.County
		rowErrs  []RowError
	)
	for i, f := range fc.Features {
		// features are numbered from 1 so reports read like line numbers
		n := i + 1
		fips := countyFIPS(f.Properties)
		if fips == "" {
			rowErrs = append(rowErrs, RowError{Line: n, Reason: "feature has no FIPS properties"})
			continue
		}
		c := model.County{
			FIPS:  fips,
			Name:  firstProp(f.Properties, "NAME", "name", "NAMELSAD"),
			State: firstProp(f.Properties, "STATE_NAME", "STUSPS", "state"),
		}
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			c.Geometry = f.Geometry
		}
		counties = append(counties, c)
	}
	return counties, rowErrs, nil
}

func countyFIPS(props map[string]any) string {
	if v := firstProp(props, "GEO_ID", "GEOID"); v != "" {
		return NormalizeFIPS(v)
	}
	state, county := firstProp(props, "STATE", "STATEFP"), firstProp(props, "COUNTY", "COUNTYFP")
	if state == "" || county == "" {
		return ""
	}
	return NormalizeFIPS(pad(state, 2) + pad(county, 3))
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func firstProp(props map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
