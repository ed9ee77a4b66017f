package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/GrainArc/GeoHub/methods"
	"github.com/GrainArc/GeoHub/models"
	"gorm.io/gorm"
)

var nameFormatPlaceholders = regexp.MustCompile(`\{(.*?)\}`)

var availableNameFormats = []string{"{name}", "{ref}"}

// SyncResult 同步结果
type SyncResult struct {
	Created   int     `json:"created"`
	Updated   int     `json:"updated"`
	SyncedIDs []int64 `json:"syncedIds"`
}

// SyncEcFromOutSource 把暂存表记录物化为正式表记录。
// 先CheckParameters校验全部参数，任一参数不合法整个同步不执行
type SyncEcFromOutSource struct {
	Type       string
	Author     string
	Provider   string
	Endpoint   string
	Activity   string
	NameFormat string
	App        int64

	db       *gorm.DB
	authorID int64
}

func NewSyncEcFromOutSource(db *gorm.DB, featureType string, author string, provider string, endpoint string, activity string, nameFormat string, app int64) *SyncEcFromOutSource {
	if activity == "" {
		activity = "hiking"
	}
	return &SyncEcFromOutSource{
		Type:       featureType,
		Author:     author,
		Provider:   provider,
		Endpoint:   strings.ToLower(endpoint),
		Activity:   strings.ToLower(activity),
		NameFormat: nameFormat,
		App:        app,
		db:         db,
	}
}

// CheckParameters 校验全部同步参数，provider和endpoint会改写为暂存表中的完整值
func (s *SyncEcFromOutSource) CheckParameters() error {
	// author：数字按内部ID查，否则按小写邮箱查
	if id, err := strconv.ParseInt(s.Author, 10, 64); err == nil {
		user, err := models.FindUserByID(s.db, id)
		if err != nil {
			return err
		}
		if user == nil {
			return &UnknownAuthorError{Author: s.Author}
		}
		s.authorID = user.ID
	} else {
		user, err := models.FindUserByEmail(s.db, s.Author)
		if err != nil {
			return err
		}
		if user == nil {
			return &UnknownAuthorError{Author: s.Author}
		}
		s.authorID = user.ID
	}

	// type
	featureType := strings.ToLower(s.Type)
	switch featureType {
	case models.OSFTypeTrack, models.OSFTypePoi, models.OSFTypeMedia, models.OSFTypeTaxonomy:
		s.Type = featureType
	default:
		return &InvalidKindError{Type: s.Type}
	}

	// provider：完整值或末段匹配，匹配后改写为完整值
	if s.Provider != "" {
		providers, err := models.DistinctProviders(s.db)
		if err != nil {
			return err
		}
		matched := ""
		for _, provider := range providers {
			if s.Provider == provider || s.Provider == providerLastSegment(provider) {
				matched = provider
				break
			}
		}
		if matched == "" {
			return &InvalidProviderError{Provider: s.Provider}
		}
		s.Provider = matched
	}

	// endpoint：完整匹配优先，子串匹配必须唯一，多个命中按歧义拒绝
	if s.Endpoint != "" {
		endpoints, err := models.DistinctEndpoints(s.db)
		if err != nil {
			return err
		}
		var matches []string
		for _, endpoint := range endpoints {
			if endpoint == s.Endpoint {
				matches = []string{endpoint}
				break
			}
			if strings.Contains(endpoint, s.Endpoint) {
				matches = append(matches, endpoint)
			}
		}
		if len(matches) != 1 {
			return &InvalidEndpointError{Endpoint: s.Endpoint, Matches: matches}
		}
		s.Endpoint = matches[0]
	}

	// name_format：只允许已识别的占位符
	if s.NameFormat != "" {
		for _, placeholder := range nameFormatPlaceholders.FindAllString(s.NameFormat, -1) {
			if !methods.IsStringInSlice(placeholder, availableNameFormats) {
				return &InvalidNameFormatError{Placeholder: placeholder}
			}
		}
	}

	// activity：必须在参照表里存在
	if s.Activity != "" {
		activity, err := models.FindActivityByIdentifier(s.db, s.Activity)
		if err != nil {
			return err
		}
		if activity == nil {
			return &InvalidActivityError{Activity: s.Activity}
		}
	}

	// TODO: 校验app参数是否存在于apps表

	return nil
}

// Sync 按校验后的过滤条件把暂存记录物化为正式记录
func (s *SyncEcFromOutSource) Sync() (*SyncResult, error) {
	query := s.db.Model(&models.OutSourceFeature{}).Where("type = ?", s.Type)
	if s.Provider != "" {
		query = query.Where("provider = ?", s.Provider)
	}
	if s.Endpoint != "" {
		query = query.Where("endpoint = ?", s.Endpoint)
	}

	var features []models.OutSourceFeature
	if err := query.Find(&features).Error; err != nil {
		return nil, err
	}

	var activityID int64
	if s.Type == models.OSFTypeTrack && s.Activity != "" {
		activity, err := models.FindActivityByIdentifier(s.db, s.Activity)
		if err != nil {
			return nil, err
		}
		if activity != nil {
			activityID = activity.ID
		}
	}

	result := &SyncResult{}
	for _, feature := range features {
		var tags map[string]interface{}
		if len(feature.Tags) > 0 {
			if err := json.Unmarshal(feature.Tags, &tags); err != nil {
				log.Printf("decoding tags of OSF %d failed: %v", feature.ID, err)
				continue
			}
		}
		name := s.buildName(&feature, tags)

		var created bool
		var ecID int64
		var err error
		switch feature.Type {
		case models.OSFTypeTrack:
			ecID, created, err = s.syncTrack(&feature, tags, name, activityID)
		case models.OSFTypePoi:
			ecID, created, err = s.syncPoi(&feature, name)
		case models.OSFTypeMedia:
			ecID, created, err = s.syncMedia(&feature, tags, name)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("syncing OSF %d: %w", feature.ID, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.SyncedIDs = append(result.SyncedIDs, ecID)
	}
	return result, nil
}

// buildName 按命名模板生成名称，{name}取多语言名称，{ref}取来源ID
func (s *SyncEcFromOutSource) buildName(feature *models.OutSourceFeature, tags map[string]interface{}) string {
	format := s.NameFormat
	if format == "" {
		format = "{name}"
	}
	name := strings.ReplaceAll(format, "{name}", firstLocaleName(tags))
	return strings.ReplaceAll(name, "{ref}", feature.SourceID)
}

func (s *SyncEcFromOutSource) syncTrack(feature *models.OutSourceFeature, tags map[string]interface{}, name string, activityID int64) (int64, bool, error) {
	var track models.EcTrack
	created := false
	result := s.db.Where("out_source_feature_id = ?", feature.ID).First(&track)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, false, result.Error
		}
		created = true
		track = models.EcTrack{OutSourceFeatureID: feature.ID}
	}

	track.Name = name
	track.Ref = feature.SourceID
	track.AuthorID = s.authorID
	track.AppID = s.App
	track.Geometry = feature.Geometry
	track.Tags = feature.Tags
	if distance, ok := tags["distance"]; ok {
		track.Distance = fmt.Sprintf("%v", distance)
	}
	if difficulty, ok := tags["difficulty"]; ok {
		track.Difficulty = fmt.Sprintf("%v", difficulty)
	}
	if err := s.db.Save(&track).Error; err != nil {
		return 0, false, err
	}

	if activityID != 0 {
		join := models.EcTrackTaxonomyActivity{EcTrackID: track.ID, TaxonomyActivityID: activityID}
		if err := s.db.Where(&join).FirstOrCreate(&join).Error; err != nil {
			return 0, false, err
		}
	}
	return track.ID, created, nil
}

func (s *SyncEcFromOutSource) syncPoi(feature *models.OutSourceFeature, name string) (int64, bool, error) {
	var poi models.EcPoi
	created := false
	result := s.db.Where("out_source_feature_id = ?", feature.ID).First(&poi)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, false, result.Error
		}
		created = true
		poi = models.EcPoi{OutSourceFeatureID: feature.ID}
	}

	poi.Name = name
	poi.Ref = feature.SourceID
	poi.AuthorID = s.authorID
	poi.AppID = s.App
	poi.Geometry = feature.Geometry
	poi.Tags = feature.Tags
	if err := s.db.Save(&poi).Error; err != nil {
		return 0, false, err
	}
	return poi.ID, created, nil
}

func (s *SyncEcFromOutSource) syncMedia(feature *models.OutSourceFeature, tags map[string]interface{}, name string) (int64, bool, error) {
	var media models.EcMedia
	created := false
	result := s.db.Where("out_source_feature_id = ?", feature.ID).First(&media)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, false, result.Error
		}
		created = true
		media = models.EcMedia{OutSourceFeatureID: feature.ID}
	}

	media.Name = name
	media.AuthorID = s.authorID
	media.AppID = s.App
	media.Geometry = feature.Geometry
	media.Tags = feature.Tags
	if url, ok := tags["url"].(string); ok {
		media.URL = url
	}
	if err := s.db.Save(&media).Error; err != nil {
		return 0, false, err
	}
	return media.ID, created, nil
}

// providerLastSegment 取完整provider标识的末段，路径分隔和类型点号都处理
func providerLastSegment(provider string) string {
	segments := strings.Split(provider, "/")
	last := segments[len(segments)-1]
	dotted := strings.Split(last, ".")
	return dotted[len(dotted)-1]
}
