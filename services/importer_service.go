package services

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/GrainArc/GeoHub/methods"
	"github.com/GrainArc/GeoHub/models"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

// WPProvider 本导入器的完整标识，写入暂存记录的provider字段
const WPProvider = "github.com/GrainArc/GeoHub/services.OutSourceImporterFeatureWP"

const galleryWorkerCount = 3

// OutSourceImporterFeatureWP 从WordPress端点导入单个要素到暂存表
type OutSourceImporterFeatureWP struct {
	Type     string
	Endpoint string
	SourceID string

	db       *gorm.DB
	fetcher  Fetcher
	taxonomy *TaxonomyService
	media    Storage

	tags      map[string]interface{}
	mediaGeom string
}

func NewOutSourceImporterFeatureWP(db *gorm.DB, fetcher Fetcher, taxonomy *TaxonomyService, media Storage, featureType string, endpoint string, sourceID string) *OutSourceImporterFeatureWP {
	return &OutSourceImporterFeatureWP{
		Type:     strings.ToLower(featureType),
		Endpoint: endpoint,
		SourceID: sourceID,
		db:       db,
		fetcher:  fetcher,
		taxonomy: taxonomy,
		media:    media,
	}
}

// ImportFeature 按类型导入，返回暂存记录的内部ID
func (i *OutSourceImporterFeatureWP) ImportFeature() (int64, error) {
	switch i.Type {
	case models.OSFTypeTrack:
		return i.ImportTrack()
	case models.OSFTypePoi:
		return i.ImportPoi()
	case models.OSFTypeMedia:
		return i.ImportMedia()
	default:
		return 0, &InvalidKindError{Type: i.Type}
	}
}

func (i *OutSourceImporterFeatureWP) ImportTrack() (int64, error) {
	url := fmt.Sprintf("%s/wp-json/wp/v2/track/%s", i.Endpoint, i.SourceID)
	track, err := i.fetcher.Fetch(url)
	if err != nil {
		log.Printf("error fetching track %s: %v", url, err)
		return 0, err
	}

	log.Printf("preparing OSF track with external ID %s", i.SourceID)
	geom, err := methods.DecodeEmbeddedGeoJSON(track["n7webmap_geojson"])
	if err != nil {
		return 0, &InvalidGeometryError{Reason: err.Error()}
	}
	geometry := methods.GeomToWKBHex(geom)
	if start, err := methods.StartPoint(geom); err == nil {
		i.mediaGeom = methods.GeomToWKBHex(start)
	}

	i.tags = make(map[string]interface{})
	i.prepareTrackTags(track)

	return i.upsert(models.OSFTypeTrack, i.SourceID, geometry, track, i.tags)
}

func (i *OutSourceImporterFeatureWP) ImportPoi() (int64, error) {
	url := fmt.Sprintf("%s/wp-json/wp/v2/poi/%s", i.Endpoint, i.SourceID)
	poi, err := i.fetcher.Fetch(url)
	if err != nil {
		log.Printf("error fetching poi %s: %v", url, err)
		return 0, err
	}

	log.Printf("preparing OSF POI with external ID %s", i.SourceID)
	coord, _ := poi["n7webmap_coord"].(map[string]interface{})
	lng, lngOK := toFloat(coord["lng"])
	lat, latOK := toFloat(coord["lat"])
	if !lngOK || !latOK {
		return 0, &InvalidGeometryError{Reason: "POI missing coordinates"}
	}
	geometry := methods.GeomToWKBHex(orb.Point{lng, lat})
	i.mediaGeom = geometry

	i.tags = make(map[string]interface{})
	i.preparePoiTags(poi)

	return i.upsert(models.OSFTypePoi, i.SourceID, geometry, poi, i.tags)
}

func (i *OutSourceImporterFeatureWP) ImportMedia() (int64, error) {
	url := fmt.Sprintf("%s/wp-json/wp/v2/media/%s", i.Endpoint, i.SourceID)
	media, err := i.fetcher.Fetch(url)
	if err != nil {
		log.Printf("error fetching media %s: %v", url, err)
		return 0, err
	}
	return i.CreateOSFMediaFromWP(media)
}

// upsert 组装暂存记录并按自然键写入
func (i *OutSourceImporterFeatureWP) upsert(featureType string, sourceID string, geometry string, raw map[string]interface{}, tags map[string]interface{}) (int64, error) {
	rawData, err := json.Marshal(raw)
	if err != nil {
		return 0, err
	}
	tagData, err := json.Marshal(tags)
	if err != nil {
		return 0, err
	}
	feature := &models.OutSourceFeature{
		Provider: WPProvider,
		Type:     featureType,
		SourceID: sourceID,
		Endpoint: i.Endpoint,
		Geometry: geometry,
		RawData:  rawData,
		Tags:     tagData,
	}
	log.Printf("creating OSF %s with external ID %s", featureType, sourceID)
	return models.UpsertOutSourceFeature(i.db, feature)
}

// prepareTrackTags 组装线路标签
func (i *OutSourceImporterFeatureWP) prepareTrackTags(track map[string]interface{}) {
	i.prepareTranslations(track, "track")

	if v, ok := stringField(track, "n7webmap_start"); ok {
		i.tags["from"] = html.UnescapeString(v)
	}
	if v, ok := stringField(track, "n7webmap_end"); ok {
		i.tags["to"] = html.UnescapeString(v)
	}
	for remote, tag := range map[string]string{
		"ele:from":  "ele_from",
		"ele:to":    "ele_to",
		"ele:max":   "ele_max",
		"ele:min":   "ele_min",
		"distance":  "distance",
		"cai_scale": "difficulty",
	} {
		if v, ok := track[remote]; ok {
			i.tags[tag] = v
		}
	}

	// 已导入的关联POI换成内部ID，尚未导入的跳过，重新导入线路时补齐
	if related, ok := track["n7webmap_related_poi"].([]interface{}); ok {
		log.Printf("preparing OSF track RELATED_POI with external ID %s", i.SourceID)
		relatedIDs := make([]int64, 0)
		for _, item := range related {
			poi, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			remoteID, ok := numericString(poi["ID"])
			if !ok {
				continue
			}
			feature, err := models.FindOutSourceFeature(i.db, i.Endpoint, remoteID)
			if err != nil {
				log.Printf("looking up related poi %s failed: %v", remoteID, err)
				continue
			}
			if feature != nil {
				relatedIDs = append(relatedIDs, feature.ID)
			}
		}
		i.tags["related_poi"] = relatedIDs
	}

	i.prepareFeatureImage(track)
	i.prepareImageGallery(track, "n7webmap_track_media_gallery")

	if codes, ok := track["activity"].([]interface{}); ok && len(codes) > 0 {
		log.Printf("preparing OSF track ACTIVITY mapping with external ID %s", i.SourceID)
		if identifiers := i.taxonomy.Translate(i.Endpoint, AxisActivity, codes); len(identifiers) > 0 {
			i.tags["activity"] = identifiers
		}
	}
}

// poiField POI透传字段映射表：远端字段名 -> 标签名，自由文本做HTML实体解码
type poiField struct {
	remote string
	tag    string
	decode bool
}

var poiFieldMap = []poiField{
	// accessibility
	{"accessibility_validity_date", "accessibility_validity_date", false},
	{"accessibility_pdf", "accessibility_pdf", false},
	{"access_mobility_check", "access_mobility_check", false},
	{"access_mobility_level", "access_mobility_level", false},
	{"access_mobility_description", "access_mobility_description", true},
	{"access_hearing_check", "access_hearing_check", false},
	{"access_hearing_level", "access_hearing_level", false},
	{"access_hearing_description", "access_hearing_description", true},
	{"access_vision_check", "access_vision_check", false},
	{"access_vision_level", "access_vision_level", false},
	{"access_vision_description", "access_vision_description", true},
	{"access_cognitive_check", "access_cognitive_check", false},
	{"access_cognitive_level", "access_cognitive_level", false},
	{"access_cognitive_description", "access_cognitive_description", true},
	{"access_food_check", "access_food_check", false},
	{"access_food_description", "access_food_description", true},
	// reachability
	{"reachability_by_bike_check", "reachability_by_bike_check", false},
	{"reachability_by_bike_description", "reachability_by_bike_description", true},
	{"reachability_on_foot_check", "reachability_on_foot_check", false},
	{"reachability_on_foot_description", "reachability_on_foot_description", true},
	{"reachability_by_car_check", "reachability_by_car_check", false},
	{"reachability_by_car_description", "reachability_by_car_description", true},
	{"reachability_by_public_transportation_check", "reachability_by_public_transportation_check", false},
	{"reachability_by_public_transportation_description", "reachability_by_public_transportation_description", true},
	// general info
	{"addr:street", "addr_street", true},
	{"addr:housenumber", "addr_housenumber", false},
	{"addr:postcode", "addr_postcode", false},
	{"addr:city", "addr_city", false},
	{"contact:phone", "contact_phone", false},
	{"contact:email", "contact_email", false},
	{"opening_hours", "opening_hours", false},
	{"capacity", "capacity", false},
	{"stars", "stars", false},
	{"n7webmap_rpt_related_url", "related_url", false},
	{"ele", "ele", false},
	{"code", "code", false},
	// style
	{"color", "color", false},
	{"icon", "icon", false},
	{"noDetails", "noDetails", false},
	{"noInteraction", "noInteraction", false},
	{"zindex", "zindex", false},
}

// preparePoiTags 组装POI标签，可选字段只在来源存在时透传
func (i *OutSourceImporterFeatureWP) preparePoiTags(poi map[string]interface{}) {
	i.prepareTranslations(poi, "poi")

	for _, field := range poiFieldMap {
		value, ok := poi[field.remote]
		if !ok {
			continue
		}
		if field.decode {
			if s, isString := value.(string); isString {
				value = html.UnescapeString(s)
			}
		}
		i.tags[field.tag] = value
	}

	i.prepareFeatureImage(poi)
	i.prepareImageGallery(poi, "n7webmap_media_gallery")

	if codes, ok := poi["webmapp_category"].([]interface{}); ok && len(codes) > 0 {
		log.Printf("preparing OSF POI POI_TYPE mapping with external ID %s", i.SourceID)
		if identifiers := i.taxonomy.Translate(i.Endpoint, AxisPoiType, codes); len(identifiers) > 0 {
			i.tags["poi_type"] = identifiers
		}
	}
}

// prepareTranslations 主语言文本加上每个翻译语言的文本，全部做HTML实体解码。
// 翻译正文需要按翻译ID重新拉取，拉取失败只跳过该语言。
func (i *OutSourceImporterFeatureWP) prepareTranslations(item map[string]interface{}, featureType string) {
	log.Printf("preparing OSF %s translations with external ID %s", featureType, i.SourceID)
	locale := localePrefix(stringValue(item["wpml_current_locale"]))
	i.setLocalized("name", locale, html.UnescapeString(rendered(item, "title")))
	i.setLocalized("description", locale, html.UnescapeString(rendered(item, "content")))
	i.setLocalized("excerpt", locale, html.UnescapeString(rendered(item, "excerpt")))

	translations, ok := item["wpml_translations"].([]interface{})
	if !ok {
		return
	}
	for _, entry := range translations {
		lang, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		langLocale := localePrefix(stringValue(lang["locale"]))
		if langLocale == "" {
			continue
		}
		i.setLocalized("name", langLocale, html.UnescapeString(stringValue(lang["post_title"])))

		translationID, ok := numericString(lang["id"])
		if !ok {
			continue
		}
		url := fmt.Sprintf("%s/wp-json/wp/v2/%s/%s", i.Endpoint, featureType, translationID)
		decoded, err := i.fetcher.Fetch(url)
		if err != nil {
			log.Printf("error fetching translation %s: %v", url, err)
			continue
		}
		i.setLocalized("description", langLocale, html.UnescapeString(rendered(decoded, "content")))
		i.setLocalized("excerpt", langLocale, html.UnescapeString(rendered(decoded, "excerpt")))
	}
}

// prepareFeatureImage 处理封面图，拉取失败记录日志后跳过
func (i *OutSourceImporterFeatureWP) prepareFeatureImage(item map[string]interface{}) {
	mediaID, ok := numericString(item["featured_media"])
	if !ok || mediaID == "0" {
		return
	}
	log.Printf("preparing OSF feature_image with external ID %s", i.SourceID)
	url := fmt.Sprintf("%s/wp-json/wp/v2/media/%s", i.Endpoint, mediaID)
	media, err := i.fetcher.Fetch(url)
	if err != nil {
		log.Printf("ERROR reaching media: %s", url)
		return
	}
	id, err := i.CreateOSFMediaFromWP(media)
	if err != nil {
		log.Printf("error creating OSF media from %s: %v", url, err)
		return
	}
	i.tags["feature_image"] = id
}

// prepareImageGallery 图集各图相互独立，并发拉取，单图失败不影响其它图
func (i *OutSourceImporterFeatureWP) prepareImageGallery(item map[string]interface{}, galleryKey string) {
	gallery, ok := item[galleryKey].([]interface{})
	if !ok || len(gallery) == 0 {
		return
	}
	log.Printf("preparing OSF image_gallery with external ID %s", i.SourceID)

	results := make([]int64, len(gallery))
	var mu sync.Mutex
	jobs := make(chan int, len(gallery))
	var wg sync.WaitGroup

	for w := 0; w < galleryWorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				img, ok := gallery[idx].(map[string]interface{})
				if !ok {
					continue
				}
				mediaID, ok := numericString(img["id"])
				if !ok {
					continue
				}
				url := fmt.Sprintf("%s/wp-json/wp/v2/media/%s", i.Endpoint, mediaID)
				media, err := i.fetcher.Fetch(url)
				if err != nil {
					log.Printf("ERROR reaching media: %s", url)
					continue
				}
				mu.Lock()
				id, err := i.CreateOSFMediaFromWP(media)
				mu.Unlock()
				if err != nil {
					log.Printf("error creating OSF media from %s: %v", url, err)
					continue
				}
				results[idx] = id
			}
		}()
	}
	for idx := range gallery {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	imageGallery := make([]int64, 0, len(gallery))
	for _, id := range results {
		if id != 0 {
			imageGallery = append(imageGallery, id)
		}
	}
	if len(imageGallery) > 0 {
		i.tags["image_gallery"] = imageGallery
	}
}

func (i *OutSourceImporterFeatureWP) setLocalized(tag string, locale string, value string) {
	if locale == "" {
		return
	}
	localized, ok := i.tags[tag].(map[string]string)
	if !ok {
		localized = make(map[string]string)
		i.tags[tag] = localized
	}
	localized[locale] = value
}

// localePrefix 取locale代码下划线前的部分，如 it_IT -> it
func localePrefix(locale string) string {
	if locale == "" {
		return ""
	}
	return strings.Split(locale, "_")[0]
}

// rendered 取WordPress字段的rendered值，如 title.rendered
func rendered(item map[string]interface{}, field string) string {
	wrapper, ok := item[field].(map[string]interface{})
	if !ok {
		return ""
	}
	return stringValue(wrapper["rendered"])
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func stringField(item map[string]interface{}, field string) (string, bool) {
	v, ok := item[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// toFloat 数值或数值字符串都接受，与来源数据的松散类型对齐
func toFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%f", &parsed); err == nil {
			return parsed, true
		}
		return 0, false
	case json.Number:
		parsed, err := value.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}

// numericString WordPress的ID字段可能是数字或字符串
func numericString(v interface{}) (string, bool) {
	switch value := v.(type) {
	case float64:
		return fmt.Sprintf("%.0f", value), true
	case int:
		return fmt.Sprintf("%d", value), true
	case string:
		if value == "" {
			return "", false
		}
		return value, true
	default:
		return "", false
	}
}

// firstLocaleName 取多语言名称，优先it、en，其余按字母序取第一个
func firstLocaleName(tags map[string]interface{}) string {
	names, ok := tags["name"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, preferred := range []string{"it", "en"} {
		if name, ok := names[preferred].(string); ok && name != "" {
			return name
		}
	}
	locales := make([]string, 0, len(names))
	for locale := range names {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	for _, locale := range locales {
		if name, ok := names[locale].(string); ok && name != "" {
			return name
		}
	}
	return ""
}
