package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 外部来源要素类型
const (
	OSFTypeTrack    = "track"
	OSFTypePoi      = "poi"
	OSFTypeMedia    = "media"
	OSFTypeTaxonomy = "taxonomy"
)

// OutSourceFeature 外部来源暂存表，(source_id, endpoint) 为自然键
type OutSourceFeature struct {
	ID        int64          `gorm:"primary_key;autoIncrement"`
	Provider  string         `gorm:"type:varchar(255);index"`
	Type      string         `gorm:"type:varchar(255);index"`
	SourceID  string         `gorm:"type:varchar(255);uniqueIndex:uidx_osf_source_endpoint"`
	Endpoint  string         `gorm:"type:varchar(255);uniqueIndex:uidx_osf_source_endpoint"`
	Geometry  string         // WKB hex
	RawData   datatypes.JSON `gorm:"type:jsonb"`
	Tags      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertOutSourceFeature 按自然键新增或整体覆盖暂存记录，返回内部ID。
// 走数据库原生的冲突更新，并发写同一自然键时双方都收敛到同一行
func UpsertOutSourceFeature(db *gorm.DB, feature *OutSourceFeature) (int64, error) {
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider", "type", "geometry", "raw_data", "tags", "updated_at",
		}),
	}).Create(feature).Error
	if err != nil {
		return 0, err
	}
	if feature.ID != 0 {
		return feature.ID, nil
	}
	// 方言不回传冲突行ID时按自然键补查
	existing, err := FindOutSourceFeature(db, feature.Endpoint, feature.SourceID)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, errors.New("upserted row not found")
	}
	return existing.ID, nil
}

// FindOutSourceFeature 按自然键查询，不存在时返回 nil
func FindOutSourceFeature(db *gorm.DB, endpoint string, sourceID string) (*OutSourceFeature, error) {
	var feature OutSourceFeature
	result := db.Where("endpoint = ? AND source_id = ?", endpoint, sourceID).First(&feature)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &feature, nil
}

func DistinctProviders(db *gorm.DB) ([]string, error) {
	var providers []string
	err := db.Model(&OutSourceFeature{}).Distinct("provider").Pluck("provider", &providers).Error
	return providers, err
}

func DistinctEndpoints(db *gorm.DB) ([]string, error) {
	var endpoints []string
	err := db.Model(&OutSourceFeature{}).Distinct("endpoint").Pluck("endpoint", &endpoints).Error
	return endpoints, err
}
