package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

const importWorkerCount = 4

// ImportTask 批量导入任务
type ImportTask struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Endpoint    string     `json:"endpoint"`
	Status      string     `json:"status"` // pending, running, completed, failed
	Total       int        `json:"total"`
	Imported    int        `json:"imported"`
	Failed      int        `json:"failed"`
	FailedURLs  []string   `json:"failedUrls"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// ProgressMessage WebSocket进度消息
type ProgressMessage struct {
	Type     string  `json:"type"` // progress, completed, error
	TaskID   string  `json:"taskId"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// ImportManager 批量导入管理器，每个来源条目独立导入，单条失败只记录URL不中断
type ImportManager struct {
	db        *gorm.DB
	fetcher   Fetcher
	taxonomy  *TaxonomyService
	media     Storage
	tasks     sync.Map // taskID -> *ImportTask
	wsClients sync.Map // taskID -> []*websocket.Conn
	mu        sync.Mutex
}

func NewImportManager(db *gorm.DB, fetcher Fetcher, taxonomy *TaxonomyService, media Storage) *ImportManager {
	return &ImportManager{
		db:       db,
		fetcher:  fetcher,
		taxonomy: taxonomy,
		media:    media,
	}
}

// StartBatchImport 建立任务并在后台执行，sourceIDs为空时拉取端点的完整清单
func (m *ImportManager) StartBatchImport(featureType string, endpoint string, sourceIDs []string) *ImportTask {
	task := &ImportTask{
		ID:        uuid.NewString(),
		Type:      featureType,
		Endpoint:  endpoint,
		Status:    "pending",
		CreatedAt: time.Now(),
	}
	m.tasks.Store(task.ID, task)

	go m.run(task, sourceIDs)
	return task
}

// GetTask 返回任务快照
func (m *ImportManager) GetTask(taskID string) (ImportTask, bool) {
	value, ok := m.tasks.Load(taskID)
	if !ok {
		return ImportTask{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return *(value.(*ImportTask)), true
}

// AddClient 注册任务进度的WebSocket连接
func (m *ImportManager) AddClient(taskID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, _ := m.wsClients.LoadOrStore(taskID, []*websocket.Conn{})
	clients := value.([]*websocket.Conn)
	m.wsClients.Store(taskID, append(clients, conn))
}

func (m *ImportManager) run(task *ImportTask, sourceIDs []string) {
	now := time.Now()
	m.mu.Lock()
	task.Status = "running"
	task.StartedAt = &now
	m.mu.Unlock()

	if len(sourceIDs) == 0 {
		list, err := m.fetchSourceList(task.Type, task.Endpoint)
		if err != nil {
			m.finish(task, "failed", fmt.Sprintf("fetching source list failed: %v", err))
			return
		}
		sourceIDs = list
	}
	m.mu.Lock()
	task.Total = len(sourceIDs)
	m.mu.Unlock()

	jobs := make(chan string, importWorkerCount)
	var wg sync.WaitGroup
	for w := 0; w < importWorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sourceID := range jobs {
				importer := NewOutSourceImporterFeatureWP(m.db, m.fetcher, m.taxonomy, m.media, task.Type, task.Endpoint, sourceID)
				_, err := importer.ImportFeature()

				m.mu.Lock()
				if err != nil {
					task.Failed++
					task.FailedURLs = append(task.FailedURLs, fmt.Sprintf("%s/wp-json/wp/v2/%s/%s", task.Endpoint, task.Type, sourceID))
				} else {
					task.Imported++
				}
				done := task.Imported + task.Failed
				total := task.Total
				m.mu.Unlock()

				m.broadcast(task.ID, ProgressMessage{
					Type:     "progress",
					TaskID:   task.ID,
					Progress: float64(done) / float64(total) * 100,
					Message:  fmt.Sprintf("%d/%d", done, total),
				})
			}
		}()
	}
	for _, sourceID := range sourceIDs {
		jobs <- sourceID
	}
	close(jobs)
	wg.Wait()

	m.mu.Lock()
	failedURLs := append([]string(nil), task.FailedURLs...)
	m.mu.Unlock()
	if len(failedURLs) > 0 {
		log.Printf("features not imported from source URLs:")
		for _, url := range failedURLs {
			log.Println(url)
		}
	}
	m.finish(task, "completed", fmt.Sprintf("%d imported, %d failed", task.Imported, task.Failed))
}

// fetchSourceList 分页拉取端点的条目ID清单
func (m *ImportManager) fetchSourceList(featureType string, endpoint string) ([]string, error) {
	var sourceIDs []string
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/wp-json/wp/v2/%s?per_page=100&page=%d", endpoint, featureType, page)
		body, err := m.fetcher.FetchRaw(url)
		if err != nil {
			// WordPress对超出的页码返回400
			if fe, ok := err.(*RemoteFetchError); ok && fe.Status == 400 && page > 1 {
				break
			}
			return nil, err
		}
		var items []map[string]interface{}
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, &RemoteFetchError{URL: url, Err: err}
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			if id, ok := numericString(item["id"]); ok {
				sourceIDs = append(sourceIDs, id)
			}
		}
	}
	return sourceIDs, nil
}

func (m *ImportManager) finish(task *ImportTask, status string, message string) {
	now := time.Now()
	m.mu.Lock()
	task.Status = status
	task.Message = message
	task.CompletedAt = &now
	m.mu.Unlock()

	messageType := "completed"
	if status == "failed" {
		messageType = "error"
	}
	m.broadcast(task.ID, ProgressMessage{
		Type:     messageType,
		TaskID:   task.ID,
		Progress: 100,
		Message:  message,
	})
}

func (m *ImportManager) broadcast(taskID string, message ProgressMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.wsClients.Load(taskID)
	if !ok {
		return
	}
	clients := value.([]*websocket.Conn)
	alive := clients[:0]
	for _, conn := range clients {
		if err := conn.WriteJSON(message); err != nil {
			conn.Close()
			continue
		}
		alive = append(alive, conn)
	}
	m.wsClients.Store(taskID, alive)
}
