package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/GrainArc/GeoHub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTask(t *testing.T, manager *ImportManager, taskID string) ImportTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := manager.GetTask(taskID)
		require.True(t, ok)
		if task.Status == "completed" || task.Status == "failed" {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task did not finish in time")
	return ImportTask{}
}

func TestBatchImportCollectsFailedURLs(t *testing.T) {
	db := newTestDB(t)
	fetcher := newStelvioFetcher()
	taxonomy := NewTaxonomyService(NewLocalStorage(filepath.Join(t.TempDir(), "mapping")))
	media := NewLocalStorage(filepath.Join(t.TempDir(), "osfmedia"))
	manager := NewImportManager(db, fetcher, taxonomy, media)

	// 2654存在，404不存在：单条失败只记录URL，不中断批次
	task := manager.StartBatchImport("poi", stelvioEndpoint, []string{"2654", "404"})
	finished := waitForTask(t, manager, task.ID)

	assert.Equal(t, "completed", finished.Status)
	assert.Equal(t, 2, finished.Total)
	assert.Equal(t, 1, finished.Imported)
	assert.Equal(t, 1, finished.Failed)
	require.Len(t, finished.FailedURLs, 1)
	assert.Equal(t, stelvioEndpoint+"/wp-json/wp/v2/poi/404", finished.FailedURLs[0])

	feature, err := models.FindOutSourceFeature(db, stelvioEndpoint, "2654")
	require.NoError(t, err)
	require.NotNil(t, feature)
}

func TestBatchImportFetchesSourceList(t *testing.T) {
	db := newTestDB(t)
	fetcher := newStelvioFetcher()
	fetcher.Responses[stelvioEndpoint+"/wp-json/wp/v2/poi?per_page=100&page=1"] = []byte(`[{"id": 2654}]`)
	fetcher.Responses[stelvioEndpoint+"/wp-json/wp/v2/poi?per_page=100&page=2"] = []byte(`[]`)
	taxonomy := NewTaxonomyService(NewLocalStorage(filepath.Join(t.TempDir(), "mapping")))
	media := NewLocalStorage(filepath.Join(t.TempDir(), "osfmedia"))
	manager := NewImportManager(db, fetcher, taxonomy, media)

	task := manager.StartBatchImport("poi", stelvioEndpoint, nil)
	finished := waitForTask(t, manager, task.ID)

	assert.Equal(t, "completed", finished.Status)
	assert.Equal(t, 1, finished.Total)
	assert.Equal(t, 1, finished.Imported)
}
