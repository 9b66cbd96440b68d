package main

import (
	"time"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/jobs"
	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/routes"
	"github.com/quitking/quitking/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Checkin{},
		&models.Post{},
		&models.Comment{},
		&models.UploadedFile{},
	)

	r := routes.SetupRouter(db)

	// Daily reconciliation of missed-day penalties, plus best-effort image cleanup
	jobs.StartDailyPenaltyJob(db)
	utils.StartUploadCleaner(5 * time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
