package main

import (
	"log"
	"net/http"

	"bustrack/internal/config"
	"bustrack/internal/controllers"
	"bustrack/internal/engine"
	"bustrack/internal/logger"
	"bustrack/internal/middleware"
	"bustrack/internal/notify"
	"bustrack/internal/routes"
	"bustrack/internal/routing"
	"bustrack/internal/store"
	"bustrack/internal/ws"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	// Wire the orchestration engine
	hub := ws.NewHub()
	eng := engine.New(
		store.New(config.DB),
		routing.NewHaversinePlanner(),
		notify.New(config.DB, hub),
		hub,
		engine.Config{},
	)
	controllers.Init(eng, hub)

	// Setup Gin router
	r := routes.SetupRouter()

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	log.Println("🚌 Server running at :8080")
	log.Fatal(http.ListenAndServe("0.0.0.0:8080", handler))
}
