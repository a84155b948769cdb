package sites

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToGeoJSON renders sites as a FeatureCollection of points for map previews.
func ToGeoJSON(sites []Site) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, s := range sites {
		f := geojson.NewFeature(orb.Point{s.Location.Longitude, s.Location.Latitude})
		f.Properties["id"] = s.ID
		f.Properties["name"] = s.Name
		f.Properties["type"] = string(s.Type)
		f.Properties["altitude"] = s.Location.Altitude
		fc.Append(f)
	}
	return fc.MarshalJSON()
}
