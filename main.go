package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cronwatch/config"
	"cronwatch/db"
	"cronwatch/handlers"
	"cronwatch/middleware"
	"cronwatch/services"
)

func main() {
	fmt.Println("CronWatch booting...")
	cfg := config.Load()

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer store.Close()

	if err := store.Migrate("schema.sql"); err != nil {
		log.Fatal("Failed to apply schema: ", err)
	}
	log.Println("Database schema verified")

	monitor := services.NewMonitor(store, services.SystemClock())
	poller := services.NewPoller(monitor, cfg.PollInterval)
	poller.Start()

	api := &handlers.API{Store: store, Monitor: monitor}

	r := gin.Default()
	r.Static("/static", "./static")
	r.GET("/", func(c *gin.Context) { c.File("static/index.html") })

	r.POST("/auth/signup", api.Signup)
	r.POST("/auth/login", api.Login)

	authed := r.Group("/", middleware.AuthRequired(store, cfg.AuthEnabled))
	{
		authed.POST("/configure_job", api.ConfigureJob)
		authed.POST("/start_job", api.StartJob)
		authed.POST("/end_job", api.EndJob)

		authed.GET("/jobs", api.ListJobs)
		authed.GET("/job_status/:id", api.GetJobStatus)
		authed.DELETE("/jobs/:id", api.DeleteJob)
		authed.POST("/jobs/:id/pause", api.PauseJob)
		authed.POST("/jobs/:id/resume", api.ResumeJob)
		authed.GET("/jobs/:id/runs", api.GetJobRuns)

		authed.GET("/alerts", api.ListAlerts)
		authed.POST("/alerts/:id/acknowledge", api.AcknowledgeAlert)

		authed.GET("/api/stats/overview", api.GetStatsOverview)
		authed.GET("/auth/me", api.Me)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		fmt.Println("Server starting on port " + cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
