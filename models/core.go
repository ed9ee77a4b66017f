package models

import (
	"errors"
	"log"

	"github.com/GrainArc/GeoHub/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

func InitDB() {
	var err error
	DB, err = gorm.Open(postgres.Open(config.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 设置命名策略
	DB.NamingStrategy = schema.NamingStrategy{
		SingularTable: true,
	}

	// 批量迁移所有表
	if err := MigrateAllTables(DB); err != nil {
		log.Printf("Failed to migrate tables: %v", err)
	}

	// 初始化默认用户
	initDefaultUser(DB)
}

// MigrateAllTables 批量迁移所有表
func MigrateAllTables(db *gorm.DB) error {
	models := []interface{}{
		&LoginUser{},
		&OutSourceFeature{},
		&TaxonomyActivity{},
		&EcTrack{},
		&EcTrackTaxonomyActivity{},
		&EcPoi{},
		&EcMedia{},
	}

	return db.AutoMigrate(models...)
}

// initDefaultUser 初始化默认用户
func initDefaultUser(db *gorm.DB) {
	user := LoginUser{
		ID:    1,
		Token: "0",
		Name:  "本地",
		Email: "admin@local",
	}

	var existingUser LoginUser
	result := db.First(&existingUser, user.ID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if err := db.Create(&user).Error; err != nil {
			log.Printf("Failed to create default user: %v", err)
		} else {
			log.Println("Default user created successfully")
		}
	}
}
