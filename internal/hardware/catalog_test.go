package hardware

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
boards:
  - board_id: tg-dn-60
    device_sku: TG-DN-60GHZ
    device_type: DN
    sector_count: 4
    nodes_per_site: 4
    capex: 1500
  - board_id: tg-cn-60
    device_sku: TG-CN-60GHZ
    device_type: CN
    capex: 250
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hardware.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"tg-cn-60", "tg-dn-60"}, catalog.BoardIDs())

	profiles, err := catalog.Resolve([]string{"tg-cn-60"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 1, profiles[0].SectorCount, "defaults applied")
	assert.Equal(t, 1, profiles[0].NodesPerSite)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	catalog, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, catalog.BoardIDs())
}

func TestLoadRejectsInvalidProfiles(t *testing.T) {
	_, err := Load(writeCatalog(t, "boards:\n  - board_id: x\n    device_type: AP\n"))
	assert.Error(t, err)

	_, err = Load(writeCatalog(t, "boards:\n  - board_id: x\n    device_type: DN\n  - board_id: x\n    device_type: CN\n"))
	assert.Error(t, err)
}

func TestResolveUnknown(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogYAML))
	require.NoError(t, err)

	_, err = catalog.Resolve([]string{"tg-dn-60", "nope", "other"})
	require.ErrorIs(t, err, ErrUnknownBoard)
	assert.Contains(t, err.Error(), "nope, other")
}

func TestDeviceListJSON(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogYAML))
	require.NoError(t, err)
	profiles, err := catalog.Resolve([]string{"tg-dn-60"})
	require.NoError(t, err)

	data, err := DeviceListJSON(profiles)
	require.NoError(t, err)

	var doc struct {
		DeviceList []map[string]any `json:"device_list"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.DeviceList, 1)
	assert.Equal(t, "TG-DN-60GHZ", doc.DeviceList[0]["device_sku"])
	assert.Equal(t, "DN", doc.DeviceList[0]["device_type"])
	assert.Equal(t, float64(4), doc.DeviceList[0]["number_of_sectors_per_node"])
}
