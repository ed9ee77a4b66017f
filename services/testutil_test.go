package services

import (
	"path/filepath"
	"testing"

	"github.com/GrainArc/GeoHub/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const stelvioEndpoint = "https://stelvio.wp.webmapp.it"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	db.NamingStrategy = schema.NamingStrategy{
		SingularTable: true,
	}
	require.NoError(t, models.MigrateAllTables(db))
	return db
}

const stelvioPoiJSON = `{
	"id": 2654,
	"wpml_current_locale": "it_IT",
	"title": {"rendered": "Rifugio Forni &amp; Dintorni"},
	"content": {"rendered": "<p>Un rifugio storico</p>"},
	"excerpt": {"rendered": "Rifugio"},
	"wpml_translations": [
		{"locale": "en_US", "id": 2655, "post_title": "Forni Hut &amp; Surroundings"}
	],
	"n7webmap_coord": {"lng": 10.5, "lat": 43.2},
	"featured_media": 2481,
	"addr:street": "Via dei Forni",
	"access_mobility_check": true,
	"access_mobility_description": "Accessibile &amp; comodo",
	"reachability_by_car_check": true,
	"capacity": "80",
	"color": "#FF0000",
	"webmapp_category": [64]
}`

const stelvioPoiTranslationJSON = `{
	"id": 2655,
	"content": {"rendered": "<p>A historic hut</p>"},
	"excerpt": {"rendered": "Hut"}
}`

const stelvioMediaJSON = `{
	"id": 2481,
	"title": {"rendered": "Foto del rifugio"},
	"caption": {"rendered": "La foto"},
	"media_details": {"file": "2021/05/forni.jpg"}
}`

const stelvioTrackJSON = `{
	"id": 100,
	"wpml_current_locale": "it_IT",
	"title": {"rendered": "Sentiero &amp; Panorama"},
	"content": {"rendered": "<p>Descrizione</p>"},
	"excerpt": {"rendered": "Estratto"},
	"wpml_translations": [
		{"locale": "en_US", "id": 101, "post_title": "Trail &amp; View"},
		{"locale": "de_DE", "id": 102, "post_title": "Weg"}
	],
	"n7webmap_geojson": "{\"type\":\"LineString\",\"coordinates\":[[10.1,45.2],[10.2,45.3]]}",
	"n7webmap_start": "Bormio",
	"n7webmap_end": "Rifugio Forni",
	"ele:from": 1200,
	"ele:to": 2100,
	"ele:max": 2200,
	"ele:min": 1100,
	"distance": "12.5",
	"cai_scale": "E",
	"n7webmap_related_poi": [{"ID": 2654}],
	"activity": [29]
}`

const stelvioTrackTranslationEnJSON = `{
	"id": 101,
	"content": {"rendered": "<p>Description</p>"},
	"excerpt": {"rendered": "Excerpt"}
}`

const stelvioTrackTranslationDeJSON = `{
	"id": 102,
	"content": {"rendered": "<p>Beschreibung</p>"},
	"excerpt": {"rendered": "Auszug"}
}`

func newStelvioFetcher() *StubFetcher {
	return &StubFetcher{Responses: map[string][]byte{
		stelvioEndpoint + "/wp-json/wp/v2/poi/2654":               []byte(stelvioPoiJSON),
		stelvioEndpoint + "/wp-json/wp/v2/poi/2655":               []byte(stelvioPoiTranslationJSON),
		stelvioEndpoint + "/wp-json/wp/v2/media/2481":             []byte(stelvioMediaJSON),
		stelvioEndpoint + "/wp-content/uploads/2021/05/forni.jpg": []byte("jpeg-bytes"),
		stelvioEndpoint + "/wp-json/wp/v2/track/100":              []byte(stelvioTrackJSON),
		stelvioEndpoint + "/wp-json/wp/v2/track/101":              []byte(stelvioTrackTranslationEnJSON),
		stelvioEndpoint + "/wp-json/wp/v2/track/102":              []byte(stelvioTrackTranslationDeJSON),
	}}
}

func newTestImporter(t *testing.T, db *gorm.DB, fetcher Fetcher, featureType string, sourceID string) *OutSourceImporterFeatureWP {
	t.Helper()
	taxonomy := NewTaxonomyService(NewLocalStorage(filepath.Join(t.TempDir(), "mapping")))
	media := NewLocalStorage(filepath.Join(t.TempDir(), "osfmedia"))
	return NewOutSourceImporterFeatureWP(db, fetcher, taxonomy, media, featureType, stelvioEndpoint, sourceID)
}
