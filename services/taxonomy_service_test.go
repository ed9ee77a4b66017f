package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingFileName(t *testing.T) {
	assert.Equal(t, "stelvio-wp-webmapp-it.json", MappingFileName("https://stelvio.wp.webmapp.it"))
	assert.Equal(t, "maremma-wp-webmapp-it.json", MappingFileName("https://maremma.wp.webmapp.it/"))
}

func TestTranslateSkipsUnmappedCodes(t *testing.T) {
	storage := NewLocalStorage(filepath.Join(t.TempDir(), "mapping"))
	require.NoError(t, storage.Put("stelvio-wp-webmapp-it.json", []byte(`{
		"activity": {"29": {"geohub_identifier": "hiking"}},
		"poi_type": {"64": {"geohub_identifier": "alpine-hut"}}
	}`)))
	service := NewTaxonomyService(storage)

	identifiers := service.Translate(stelvioEndpoint, AxisActivity, []interface{}{float64(29), float64(999)})
	assert.Equal(t, []string{"hiking"}, identifiers)

	identifiers = service.Translate(stelvioEndpoint, AxisPoiType, []interface{}{float64(64)})
	assert.Equal(t, []string{"alpine-hut"}, identifiers)
}

func TestTranslateMissingMappingFile(t *testing.T) {
	service := NewTaxonomyService(NewLocalStorage(filepath.Join(t.TempDir(), "mapping")))
	assert.Nil(t, service.Translate(stelvioEndpoint, AxisActivity, []interface{}{float64(29)}))
}

func TestTranslateMissingAxis(t *testing.T) {
	storage := NewLocalStorage(filepath.Join(t.TempDir(), "mapping"))
	require.NoError(t, storage.Put("stelvio-wp-webmapp-it.json", []byte(`{"activity": {}}`)))
	service := NewTaxonomyService(storage)
	assert.Nil(t, service.Translate(stelvioEndpoint, AxisPoiType, []interface{}{float64(64)}))
}
