package services

import (
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/GrainArc/GeoHub/methods"
	"github.com/GrainArc/GeoHub/models"
)

// CreateOSFMediaFromWP 把内嵌的媒体载荷导入为media类型暂存记录，返回内部ID，
// 供线路和POI的封面图、图集交叉引用
func (i *OutSourceImporterFeatureWP) CreateOSFMediaFromWP(media map[string]interface{}) (int64, error) {
	sourceID, ok := numericString(media["id"])
	if !ok {
		return 0, errors.New("media payload has no id")
	}

	tags := i.PrepareMediaTags(media)
	return i.upsert(models.OSFTypeMedia, sourceID, i.mediaGeom, media, tags)
}

// PrepareMediaTags 组装媒体标签并保存媒体文件。
// 媒体没有locale时默认it；标题和说明原样保留，不做实体解码
func (i *OutSourceImporterFeatureWP) PrepareMediaTags(media map[string]interface{}) map[string]interface{} {
	mediaID, _ := numericString(media["id"])
	log.Printf("preparing OSF media translations with external ID %s", mediaID)
	tags := make(map[string]interface{})

	localLang := "it"
	if locale := localePrefix(stringValue(media["wpml_current_locale"])); locale != "" {
		localLang = locale
	}
	setLocalizedTag(tags, "name", localLang, rendered(media, "title"))
	setLocalizedTag(tags, "description", localLang, rendered(media, "caption"))

	if translations, ok := media["wpml_translations"].([]interface{}); ok {
		for _, entry := range translations {
			lang, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			langLocale := localePrefix(stringValue(lang["locale"]))
			if langLocale == "" {
				continue
			}
			setLocalizedTag(tags, "name", langLocale, stringValue(lang["post_title"]))

			translationID, ok := numericString(lang["id"])
			if !ok {
				continue
			}
			url := fmt.Sprintf("%s/wp-json/wp/v2/media/%s", i.Endpoint, translationID)
			decoded, err := i.fetcher.Fetch(url)
			if err != nil {
				log.Printf("error fetching media translation %s: %v", url, err)
				continue
			}
			setLocalizedTag(tags, "description", langLocale, rendered(decoded, "caption"))
		}
	}

	// 文件保存失败不向上传播，只记录日志
	if err := i.storeMediaBinary(media, tags); err != nil {
		log.Printf("saving media to osfmedia storage error: %v", err)
	}

	return tags
}

// storeMediaBinary 下载媒体文件并按内容名入库，存储确认存在后才写url标签
func (i *OutSourceImporterFeatureWP) storeMediaBinary(media map[string]interface{}, tags map[string]interface{}) error {
	details, _ := media["media_details"].(map[string]interface{})
	file := stringValue(details["file"])
	if file == "" {
		return &MediaPersistError{Err: errors.New("media payload has no media_details.file")}
	}

	wpURL := fmt.Sprintf("%s/wp-content/uploads/%s", i.Endpoint, file)
	log.Printf("getting image from url %s", wpURL)
	contents, err := i.fetcher.FetchRaw(methods.EncodeNonASCII(wpURL))
	if err != nil {
		return &MediaPersistError{Name: file, Err: err}
	}

	base := path.Base(file)
	ext := path.Ext(base)
	osfName := methods.Sha1Str(strings.TrimSuffix(base, ext)) + ext
	if err := i.media.Put(osfName, contents); err != nil {
		return &MediaPersistError{Name: osfName, Err: err}
	}

	log.Printf("saved OSF media with name %s", osfName)
	if i.media.Exists(osfName) {
		tags["url"] = osfName
	} else {
		tags["url"] = ""
	}
	return nil
}

func setLocalizedTag(tags map[string]interface{}, tag string, locale string, value string) {
	localized, ok := tags[tag].(map[string]string)
	if !ok {
		localized = make(map[string]string)
		tags[tag] = localized
	}
	localized[locale] = value
}
