package services

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/GrainArc/GeoHub/methods"
	"github.com/GrainArc/GeoHub/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTags(t *testing.T, feature *models.OutSourceFeature) map[string]interface{} {
	t.Helper()
	var tags map[string]interface{}
	require.NoError(t, json.Unmarshal(feature.Tags, &tags))
	return tags
}

func TestImportPoiCreatesOutSourceFeature(t *testing.T) {
	db := newTestDB(t)
	importer := newTestImporter(t, db, newStelvioFetcher(), "poi", "2654")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var feature models.OutSourceFeature
	require.NoError(t, db.First(&feature, id).Error)
	assert.Equal(t, "poi", feature.Type)
	assert.Equal(t, "2654", feature.SourceID)
	assert.Equal(t, stelvioEndpoint, feature.Endpoint)
	assert.Equal(t, WPProvider, feature.Provider)

	geom, err := methods.GeomFromWKBHex(feature.Geometry)
	require.NoError(t, err)
	point, ok := geom.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, 10.5, point.Lon())
	assert.Equal(t, 43.2, point.Lat())

	tags := decodeTags(t, &feature)
	names := tags["name"].(map[string]interface{})
	assert.Equal(t, "Rifugio Forni & Dintorni", names["it"])
	assert.Equal(t, "Forni Hut & Surroundings", names["en"])
	descriptions := tags["description"].(map[string]interface{})
	assert.Equal(t, "<p>Un rifugio storico</p>", descriptions["it"])
	assert.Equal(t, "<p>A historic hut</p>", descriptions["en"])
	assert.Equal(t, "Via dei Forni", tags["addr_street"])
	assert.Equal(t, "Accessibile & comodo", tags["access_mobility_description"])
	assert.Equal(t, "80", tags["capacity"])
	assert.Equal(t, "#FF0000", tags["color"])
}

func TestImportPoiFeatureImagePointsAtMediaFeature(t *testing.T) {
	db := newTestDB(t)
	importer := newTestImporter(t, db, newStelvioFetcher(), "poi", "2654")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var poi models.OutSourceFeature
	require.NoError(t, db.First(&poi, id).Error)
	tags := decodeTags(t, &poi)
	mediaID := int64(tags["feature_image"].(float64))

	var media models.OutSourceFeature
	require.NoError(t, db.First(&media, mediaID).Error)
	assert.Equal(t, "media", media.Type)
	assert.Equal(t, "2481", media.SourceID)
	assert.Equal(t, WPProvider, media.Provider)
	// 媒体几何取POI自身的点
	assert.Equal(t, poi.Geometry, media.Geometry)
}

func TestImportPoiNonNumericCoordinate(t *testing.T) {
	db := newTestDB(t)
	fetcher := &StubFetcher{Responses: map[string][]byte{
		stelvioEndpoint + "/wp-json/wp/v2/poi/99": []byte(`{
			"id": 99,
			"wpml_current_locale": "it_IT",
			"title": {"rendered": "Broken"},
			"content": {"rendered": ""},
			"excerpt": {"rendered": ""},
			"n7webmap_coord": {"lng": 10.5, "lat": "not-a-number"}
		}`),
	}}
	importer := newTestImporter(t, db, fetcher, "poi", "99")

	_, err := importer.ImportFeature()
	var geomErr *InvalidGeometryError
	require.ErrorAs(t, err, &geomErr)

	var count int64
	db.Model(&models.OutSourceFeature{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestImportTrackTags(t *testing.T) {
	db := newTestDB(t)
	importer := newTestImporter(t, db, newStelvioFetcher(), "track", "100")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var feature models.OutSourceFeature
	require.NoError(t, db.First(&feature, id).Error)
	assert.Equal(t, "track", feature.Type)

	geom, err := methods.GeomFromWKBHex(feature.Geometry)
	require.NoError(t, err)
	line, ok := geom.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.Point{10.1, 45.2}, line[0])

	tags := decodeTags(t, &feature)
	assert.Equal(t, "Bormio", tags["from"])
	assert.Equal(t, "Rifugio Forni", tags["to"])
	assert.Equal(t, float64(1200), tags["ele_from"])
	assert.Equal(t, float64(2100), tags["ele_to"])
	assert.Equal(t, float64(2200), tags["ele_max"])
	assert.Equal(t, float64(1100), tags["ele_min"])
	assert.Equal(t, "12.5", tags["distance"])
	assert.Equal(t, "E", tags["difficulty"])
}

func TestImportTrackLocaleCompleteness(t *testing.T) {
	db := newTestDB(t)
	importer := newTestImporter(t, db, newStelvioFetcher(), "track", "100")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var feature models.OutSourceFeature
	require.NoError(t, db.First(&feature, id).Error)
	tags := decodeTags(t, &feature)

	// 主语言加两个翻译，共三个locale，且全部做过实体解码
	names := tags["name"].(map[string]interface{})
	assert.Len(t, names, 3)
	assert.Equal(t, "Sentiero & Panorama", names["it"])
	assert.Equal(t, "Trail & View", names["en"])
	assert.Equal(t, "Weg", names["de"])

	descriptions := tags["description"].(map[string]interface{})
	assert.Len(t, descriptions, 3)
	assert.Equal(t, "<p>Beschreibung</p>", descriptions["de"])
	excerpts := tags["excerpt"].(map[string]interface{})
	assert.Len(t, excerpts, 3)
}

func TestImportTrackTranslationFetchFailureSkipsLocaleBody(t *testing.T) {
	db := newTestDB(t)
	fetcher := newStelvioFetcher()
	delete(fetcher.Responses, stelvioEndpoint+"/wp-json/wp/v2/track/102")
	importer := newTestImporter(t, db, fetcher, "track", "100")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var feature models.OutSourceFeature
	require.NoError(t, db.First(&feature, id).Error)
	tags := decodeTags(t, &feature)

	// 标题来自翻译列表，正文来自失败的重新拉取：标题保留，正文缺de
	names := tags["name"].(map[string]interface{})
	assert.Contains(t, names, "de")
	descriptions := tags["description"].(map[string]interface{})
	assert.NotContains(t, descriptions, "de")
}

func TestImportIdempotence(t *testing.T) {
	db := newTestDB(t)
	importer := newTestImporter(t, db, newStelvioFetcher(), "track", "100")

	firstID, err := importer.ImportFeature()
	require.NoError(t, err)
	var first models.OutSourceFeature
	require.NoError(t, db.First(&first, firstID).Error)

	secondID, err := importer.ImportFeature()
	require.NoError(t, err)
	var second models.OutSourceFeature
	require.NoError(t, db.First(&second, secondID).Error)

	assert.Equal(t, firstID, secondID)
	assert.JSONEq(t, string(first.Tags), string(second.Tags))

	var count int64
	db.Model(&models.OutSourceFeature{}).Where("source_id = ? AND endpoint = ?", "100", stelvioEndpoint).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRelatedPoiResolutionOrdering(t *testing.T) {
	t.Run("poi imported first", func(t *testing.T) {
		db := newTestDB(t)
		fetcher := newStelvioFetcher()

		poiID, err := newTestImporter(t, db, fetcher, "poi", "2654").ImportFeature()
		require.NoError(t, err)
		trackID, err := newTestImporter(t, db, fetcher, "track", "100").ImportFeature()
		require.NoError(t, err)

		var track models.OutSourceFeature
		require.NoError(t, db.First(&track, trackID).Error)
		tags := decodeTags(t, &track)
		related := tags["related_poi"].([]interface{})
		require.Len(t, related, 1)
		assert.Equal(t, float64(poiID), related[0])
	})

	t.Run("track imported first then reimported", func(t *testing.T) {
		db := newTestDB(t)
		fetcher := newStelvioFetcher()

		trackID, err := newTestImporter(t, db, fetcher, "track", "100").ImportFeature()
		require.NoError(t, err)

		var track models.OutSourceFeature
		require.NoError(t, db.First(&track, trackID).Error)
		tags := decodeTags(t, &track)
		related := tags["related_poi"].([]interface{})
		assert.Empty(t, related)

		poiID, err := newTestImporter(t, db, fetcher, "poi", "2654").ImportFeature()
		require.NoError(t, err)

		reimportedID, err := newTestImporter(t, db, fetcher, "track", "100").ImportFeature()
		require.NoError(t, err)
		assert.Equal(t, trackID, reimportedID)

		require.NoError(t, db.First(&track, trackID).Error)
		tags = decodeTags(t, &track)
		related = tags["related_poi"].([]interface{})
		require.Len(t, related, 1)
		assert.Equal(t, float64(poiID), related[0])
	})
}

func TestImportPoiMediaFetchFailuresAreIsolated(t *testing.T) {
	db := newTestDB(t)
	fetcher := newStelvioFetcher()
	// 封面图9999和图集中的9998都拉不到，2481可用
	fetcher.Responses[stelvioEndpoint+"/wp-json/wp/v2/poi/77"] = []byte(`{
		"id": 77,
		"wpml_current_locale": "it_IT",
		"title": {"rendered": "Punto panoramico"},
		"content": {"rendered": ""},
		"excerpt": {"rendered": ""},
		"n7webmap_coord": {"lng": 10.3, "lat": 45.1},
		"featured_media": 9999,
		"n7webmap_media_gallery": [{"id": 2481}, {"id": 9998}]
	}`)
	importer := newTestImporter(t, db, fetcher, "poi", "77")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var poi models.OutSourceFeature
	require.NoError(t, db.First(&poi, id).Error)
	tags := decodeTags(t, &poi)

	// 封面图失败只跳过，标签不写
	_, ok := tags["feature_image"]
	assert.False(t, ok)

	// 图集里失败的条目被剔除，其余照常入库
	gallery := tags["image_gallery"].([]interface{})
	require.Len(t, gallery, 1)
	var media models.OutSourceFeature
	require.NoError(t, db.First(&media, int64(gallery[0].(float64))).Error)
	assert.Equal(t, "media", media.Type)
	assert.Equal(t, "2481", media.SourceID)
}

func TestImportTrackActivityMapping(t *testing.T) {
	db := newTestDB(t)
	mappingDir := filepath.Join(t.TempDir(), "mapping")
	mappingStorage := NewLocalStorage(mappingDir)
	require.NoError(t, mappingStorage.Put("stelvio-wp-webmapp-it.json", []byte(`{
		"activity": {"29": {"geohub_identifier": "hiking"}, "30": {"geohub_identifier": "cycling"}}
	}`)))

	taxonomy := NewTaxonomyService(mappingStorage)
	media := NewLocalStorage(filepath.Join(t.TempDir(), "osfmedia"))
	importer := NewOutSourceImporterFeatureWP(db, newStelvioFetcher(), taxonomy, media, "track", stelvioEndpoint, "100")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var feature models.OutSourceFeature
	require.NoError(t, db.First(&feature, id).Error)
	tags := decodeTags(t, &feature)
	activities := tags["activity"].([]interface{})
	require.Len(t, activities, 1)
	assert.Equal(t, "hiking", activities[0])
}

func TestImportTrackPrimaryFetchFailure(t *testing.T) {
	db := newTestDB(t)
	fetcher := &StubFetcher{Responses: map[string][]byte{}}
	importer := newTestImporter(t, db, fetcher, "track", "100")

	_, err := importer.ImportFeature()
	var fetchErr *RemoteFetchError
	require.True(t, errors.As(err, &fetchErr))

	var count int64
	db.Model(&models.OutSourceFeature{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestImportMediaFeature(t *testing.T) {
	db := newTestDB(t)
	importer := newTestImporter(t, db, newStelvioFetcher(), "media", "2481")

	id, err := importer.ImportFeature()
	require.NoError(t, err)

	var feature models.OutSourceFeature
	require.NoError(t, db.First(&feature, id).Error)
	assert.Equal(t, "media", feature.Type)
	assert.Equal(t, "2481", feature.SourceID)

	tags := decodeTags(t, &feature)
	// 媒体没有locale标记时默认it
	names := tags["name"].(map[string]interface{})
	assert.Equal(t, "Foto del rifugio", names["it"])
	descriptions := tags["description"].(map[string]interface{})
	assert.Equal(t, "La foto", descriptions["it"])
	assert.Equal(t, methods.Sha1Str("forni")+".jpg", tags["url"])
}
