package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

var MainRouter string
var DSN string
var Dbname string
var MappingDir string
var MediaDir string
var MainConfig Config

type Config struct {
	XMLName    xml.Name `xml:"config"`
	MainRouter string   `xml:"MainRouter"`
	Dbname     string   `xml:"dbname"`
	Host       string   `xml:"host"`
	Port       string   `xml:"port"`
	Username   string   `xml:"user"`
	Password   string   `xml:"password"`
	MappingDir string   `xml:"mapping"`
	MediaDir   string   `xml:"osfmedia"`
}

func init() {
	MappingDir = "./mapping"
	MediaDir = "./osfmedia"

	xmlFile, err := os.Open("config.xml")
	if err != nil {
		fmt.Println("Error  opening  file:", err)
		return
	}
	defer xmlFile.Close()

	xmlDecoder := xml.NewDecoder(xmlFile)
	err = xmlDecoder.Decode(&MainConfig)
	if err != nil {
		fmt.Println("Error  decoding  XML:", err)
		return
	}
	MainRouter = MainConfig.MainRouter
	Dbname = MainConfig.Dbname
	if MainConfig.MappingDir != "" {
		MappingDir = MainConfig.MappingDir
	}
	if MainConfig.MediaDir != "" {
		MediaDir = MainConfig.MediaDir
	}

	DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", MainConfig.Host, MainConfig.Username, MainConfig.Password, MainConfig.Dbname, MainConfig.Port)

}
