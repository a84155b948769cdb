// Package hardware loads the hardware board profiles a plan may restrict
// itself to, and renders them as the device-list file the planner expects.
package hardware

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownBoard = errors.New("unknown hardware board id")

type DeviceType string

const (
	DeviceTypeDN DeviceType = "DN"
	DeviceTypeCN DeviceType = "CN"
)

// Profile describes one hardware board.
type Profile struct {
	BoardID      string     `yaml:"board_id" json:"board_id"`
	DeviceSKU    string     `yaml:"device_sku" json:"device_sku"`
	DeviceType   DeviceType `yaml:"device_type" json:"device_type"`
	SectorCount  int        `yaml:"sector_count" json:"sector_count"`
	NodesPerSite int        `yaml:"nodes_per_site" json:"nodes_per_site"`
	Capex        float64    `yaml:"capex" json:"capex"`
}

type catalogFile struct {
	Boards []Profile `yaml:"boards"`
}

type Catalog struct {
	profiles map[string]Profile
}

func NewCatalog(profiles ...Profile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if p.BoardID == "" {
			return nil, errors.New("hardware profile without board_id")
		}
		if _, dup := c.profiles[p.BoardID]; dup {
			return nil, fmt.Errorf("duplicate hardware board id %q", p.BoardID)
		}
		if p.DeviceType != DeviceTypeDN && p.DeviceType != DeviceTypeCN {
			return nil, fmt.Errorf("board %q: invalid device_type %q", p.BoardID, p.DeviceType)
		}
		if p.SectorCount <= 0 {
			p.SectorCount = 1
		}
		if p.NodesPerSite <= 0 {
			p.NodesPerSite = 1
		}
		c.profiles[p.BoardID] = p
	}
	return c, nil
}

// Load reads a YAML catalog. A missing path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCatalog()
		}
		return nil, fmt.Errorf("read hardware catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse hardware catalog %s: %w", path, err)
	}
	return NewCatalog(file.Boards...)
}

func (c *Catalog) BoardIDs() []string {
	ids := make([]string, 0, len(c.profiles))
	for id := range c.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the profiles for ids in order. Every unknown id is named in
// the returned error.
func (c *Catalog) Resolve(ids []string) ([]Profile, error) {
	var (
		out     = make([]Profile, 0, len(ids))
		unknown []string
	)
	for _, id := range ids {
		p, ok := c.profiles[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		out = append(out, p)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoard, strings.Join(unknown, ", "))
	}
	return out, nil
}

type deviceEntry struct {
	DeviceSKU            string     `json:"device_sku"`
	DeviceType           DeviceType `json:"device_type"`
	NumberOfSectors      int        `json:"number_of_sectors_per_node"`
	NumberOfNodesPerSite int        `json:"number_of_nodes_per_site"`
	NodeCapex            float64    `json:"node_capex"`
}

// DeviceListJSON renders profiles as a device-list file.
func DeviceListJSON(profiles []Profile) ([]byte, error) {
	devices := make([]deviceEntry, 0, len(profiles))
	for _, p := range profiles {
		devices = append(devices, deviceEntry{
			DeviceSKU:            p.DeviceSKU,
			DeviceType:           p.DeviceType,
			NumberOfSectors:      p.SectorCount,
			NumberOfNodesPerSite: p.NodesPerSite,
			NodeCapex:            p.Capex,
		})
	}
	return json.Marshal(map[string]any{"device_list": devices})
}
