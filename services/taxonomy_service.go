package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
)

// 分类映射的两个维度
const (
	AxisActivity = "activity"
	AxisPoiType  = "poi_type"
)

type taxonomyEntry struct {
	GeohubIdentifier string `json:"geohub_identifier"`
}

// TaxonomyService 按来源端点加载分类映射表，把远端分类代码翻译为平台标识
type TaxonomyService struct {
	storage Storage
}

func NewTaxonomyService(storage Storage) *TaxonomyService {
	return &TaxonomyService{storage: storage}
}

// MappingFileName 端点主机名中的点替换为横线，加 .json 后缀
func MappingFileName(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return strings.ReplaceAll(endpoint, ".", "-") + ".json"
	}
	return strings.ReplaceAll(parsed.Host, ".", "-") + ".json"
}

// Translate 翻译一组远端分类代码，映射文件或映射项缺失的代码直接跳过
func (s *TaxonomyService) Translate(endpoint string, axis string, codes []interface{}) []string {
	fileName := MappingFileName(endpoint)
	if !s.storage.Exists(fileName) {
		return nil
	}
	content, err := s.storage.Get(fileName)
	if err != nil {
		log.Printf("reading taxonomy mapping %s failed: %v", fileName, err)
		return nil
	}

	var mapping map[string]map[string]taxonomyEntry
	if err := json.Unmarshal(content, &mapping); err != nil {
		log.Printf("decoding taxonomy mapping %s failed: %v", fileName, err)
		return nil
	}
	table, ok := mapping[axis]
	if !ok || len(table) == 0 {
		return nil
	}

	var identifiers []string
	for _, code := range codes {
		entry, ok := table[codeKey(code)]
		if !ok || entry.GeohubIdentifier == "" {
			continue
		}
		identifiers = append(identifiers, entry.GeohubIdentifier)
	}
	return identifiers
}

// codeKey 远端代码可能是数字或字符串，统一转成映射表键
func codeKey(code interface{}) string {
	switch v := code.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
