package methods

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// GeomToWKBHex 几何转WKB十六进制字符串
func GeomToWKBHex(geom orb.Geometry) string {
	tempWkb, _ := wkb.Marshal(geom)
	return hex.EncodeToString(tempWkb)
}

func GeomFromWKBHex(s string) (orb.Geometry, error) {
	wkbBytes, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return wkb.Unmarshal(wkbBytes)
}

// DecodeEmbeddedGeoJSON 解析内嵌GeoJSON，来源字段可能是JSON字符串或已解码对象
func DecodeEmbeddedGeoJSON(raw interface{}) (orb.Geometry, error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("empty geojson payload")
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = encoded
	}

	if geom, err := geojson.UnmarshalGeometry(data); err == nil {
		return geom.Geometry(), nil
	}
	if feature, err := geojson.UnmarshalFeature(data); err == nil {
		return feature.Geometry, nil
	}
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("undecodable geojson payload: %w", err)
	}
	if len(collection.Features) == 0 {
		return nil, fmt.Errorf("geojson feature collection is empty")
	}
	return collection.Features[0].Geometry, nil
}

// StartPoint 取几何起点，点几何返回自身
func StartPoint(geom orb.Geometry) (orb.Point, error) {
	switch g := geom.(type) {
	case orb.Point:
		return g, nil
	case orb.LineString:
		if len(g) == 0 {
			return orb.Point{}, fmt.Errorf("empty linestring")
		}
		return g[0], nil
	case orb.MultiLineString:
		if len(g) == 0 || len(g[0]) == 0 {
			return orb.Point{}, fmt.Errorf("empty multilinestring")
		}
		return g[0][0], nil
	default:
		return orb.Point{}, fmt.Errorf("unsupported geometry type %s", geom.GeoJSONType())
	}
}
