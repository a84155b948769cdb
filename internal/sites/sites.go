// Package sites converts site-list CSV files to and from typed rows.
//
// A site-list file has the columns lat, lon, type, height and name. lat, lon
// and type are required columns; height and name may be left out. Columns may
// appear in any order.
package sites

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrSchema = errors.New("invalid sites file schema")
	ErrParse  = errors.New("invalid sites file row")
)

type SiteType string

const (
	SiteTypeDN  SiteType = "DN"
	SiteTypeCN  SiteType = "CN"
	SiteTypePOP SiteType = "POP"
)

func ParseSiteType(s string) (SiteType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(SiteTypeDN):
		return SiteTypeDN, nil
	case string(SiteTypeCN):
		return SiteTypeCN, nil
	case string(SiteTypePOP):
		return SiteTypePOP, nil
	}
	return "", fmt.Errorf("unknown site type %q", s)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Site is one row of a site-list file. ID is the row index and only
// identifies the row within a single read.
type Site struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Type     SiteType `json:"type"`
}

// SitesFile is the typed view of an input file with the site-list role.
type SitesFile struct {
	ID    uuid.UUID `json:"id"`
	Sites []Site    `json:"sites"`
}

const (
	colLat    = "lat"
	colLon    = "lon"
	colType   = "type"
	colHeight = "height"
	colName   = "name"
)

var header = []string{colLat, colLon, colType, colHeight, colName}

var requiredColumns = []string{colLat, colLon, colType}

// Decode parses site-list CSV bytes.
func Decode(r io.Reader) ([]Site, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	index, err := columnIndex(head)
	if err != nil {
		return nil, err
	}

	sites := []Site{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		site, err := decodeRow(len(sites), record, index)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: %v", ErrParse, line, err)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func columnIndex(head []string) (map[string]int, error) {
	index := make(map[string]int, len(head))
	for i, raw := range head {
		name := strings.ToLower(strings.TrimSpace(raw))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		known := false
		for _, col := range header {
			if col == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: unexpected column %q", ErrSchema, raw)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, raw)
		}
		index[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrSchema, col)
		}
	}
	return index, nil
}

func decodeRow(id int, record []string, index map[string]int) (Site, error) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	site := Site{ID: id, Name: field(colName)}

	var err error
	if site.Location.Latitude, err = parseFloat(colLat, field(colLat), false); err != nil {
		return Site{}, err
	}
	if site.Location.Longitude, err = parseFloat(colLon, field(colLon), false); err != nil {
		return Site{}, err
	}
	if site.Location.Altitude, err = parseFloat(colHeight, field(colHeight), true); err != nil {
		return Site{}, err
	}
	if site.Type, err = ParseSiteType(field(colType)); err != nil {
		return Site{}, err
	}
	return site, nil
}

func parseFloat(col, value string, optional bool) (float64, error) {
	if value == "" {
		if optional {
			return 0, nil
		}
		return 0, fmt.Errorf("empty %s", col)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", col, value)
	}
	return v, nil
}

// Encode renders sites as CSV. The header row is always written, so an empty
// list yields a skeleton file.
func Encode(sites []Site) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range sites {
		siteType := s.Type
		if siteType == "" {
			siteType = SiteTypeDN
		}
		row := []string{
			formatFloat(s.Location.Latitude),
			formatFloat(s.Location.Longitude),
			string(siteType),
			formatFloat(s.Location.Altitude),
			s.Name,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
