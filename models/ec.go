package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LoginUser struct {
	ID       int64  `gorm:"primary_key"`
	Username string `gorm:"type:varchar(255)"`
	Password string `gorm:"type:varchar(255)"`
	Name     string `gorm:"type:varchar(255)"`
	Email    string `gorm:"type:varchar(255);index"`
	Phone    string `gorm:"type:varchar(255)"`
	Token    string `gorm:"type:varchar(255)"`
	Grade    string `gorm:"type:varchar(255)"`
}

// TaxonomyActivity 活动分类参照表
type TaxonomyActivity struct {
	ID         int64          `gorm:"primary_key;autoIncrement"`
	Identifier string         `gorm:"type:varchar(255);uniqueIndex"`
	Name       datatypes.JSON `gorm:"type:jsonb"`
}

// EcTrack 线路正式表
type EcTrack struct {
	ID                 int64          `gorm:"primary_key;autoIncrement"`
	Name               string         `gorm:"type:varchar(255)"`
	Ref                string         `gorm:"type:varchar(255)"`
	AuthorID           int64          `gorm:"index"`
	AppID              int64          `gorm:"index"`
	OutSourceFeatureID int64          `gorm:"uniqueIndex"`
	Geometry           string         // WKB hex
	Distance           string         `gorm:"type:varchar(255)"`
	Difficulty         string         `gorm:"type:varchar(255)"`
	Tags               datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EcTrackTaxonomyActivity 线路与活动分类关联表
type EcTrackTaxonomyActivity struct {
	ID                 int64 `gorm:"primary_key;autoIncrement"`
	EcTrackID          int64 `gorm:"uniqueIndex:uidx_track_activity"`
	TaxonomyActivityID int64 `gorm:"uniqueIndex:uidx_track_activity"`
}

// EcPoi 兴趣点正式表
type EcPoi struct {
	ID                 int64          `gorm:"primary_key;autoIncrement"`
	Name               string         `gorm:"type:varchar(255)"`
	Ref                string         `gorm:"type:varchar(255)"`
	AuthorID           int64          `gorm:"index"`
	AppID              int64          `gorm:"index"`
	OutSourceFeatureID int64          `gorm:"uniqueIndex"`
	Geometry           string         // WKB hex
	Tags               datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EcMedia 媒体正式表
type EcMedia struct {
	ID                 int64          `gorm:"primary_key;autoIncrement"`
	Name               string         `gorm:"type:varchar(255)"`
	URL                string         `gorm:"type:varchar(255)"`
	AuthorID           int64          `gorm:"index"`
	AppID              int64          `gorm:"index"`
	OutSourceFeatureID int64          `gorm:"uniqueIndex"`
	Geometry           string         // WKB hex
	Tags               datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FindUserByID 不存在时返回 nil
func FindUserByID(db *gorm.DB, id int64) (*LoginUser, error) {
	var user LoginUser
	result := db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindUserByEmail 按小写邮箱查询，不存在时返回 nil
func FindUserByEmail(db *gorm.DB, email string) (*LoginUser, error) {
	var user LoginUser
	result := db.Where("email = ?", strings.ToLower(email)).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindActivityByIdentifier 不存在时返回 nil
func FindActivityByIdentifier(db *gorm.DB, identifier string) (*TaxonomyActivity, error) {
	var activity TaxonomyActivity
	result := db.Where("identifier = ?", identifier).First(&activity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &activity, nil
}
