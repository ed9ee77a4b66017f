package main

import (
	"log"

	"github.com/GrainArc/GeoHub/config"
	"github.com/GrainArc/GeoHub/models"
	"github.com/GrainArc/GeoHub/routers"
	"github.com/gin-gonic/gin"
)

func main() {
	models.InitDB()

	r := gin.Default()
	routers.OutSourceRouters(r)

	addr := config.MainRouter
	if addr == "" {
		addr = ":8080"
	}
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
