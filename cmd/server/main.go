package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"transmito/internal/api"
	"transmito/internal/config"
	"transmito/internal/database"
	"transmito/internal/gateway"
	"transmito/internal/session"
	"transmito/internal/transmission"
	"transmito/internal/ws"
)

func main() {
	cfg := config.LoadConfig()
	database.Init(cfg)

	account, err := database.LoadAccount()
	if err != nil {
		log.Fatalf("Failed to load account record: %v", err)
	}

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	hub := ws.NewHub()
	go hub.Run()

	gatewayClient := gateway.NewClient(cfg)
	if cfg.Simulated() {
		log.Println("Gateway credentials not configured: running in simulated mode")
	}

	machine := session.NewMachine(gatewayClient, account.RegisteredNumber, session.Hooks{
		OnUpdateNumber: database.SaveAccountNumber,
		OnSessionActive: func() {
			log.Println("Messaging session active")
		},
		OnStateChange: hub.NotifySession,
	}, session.Options{})
	defer machine.Close()

	// Resume an existing link (or open the simulated gate) on boot.
	go machine.Check(context.Background())

	contactHandler := api.NewContactHandler()
	transmissionHandler := api.NewTransmissionHandler(gatewayClient, transmission.DefaultPolicy(), machine, hub)
	sessionHandler := api.NewSessionHandler(machine)

	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.POST("/contacts", contactHandler.CreateContact)
		apiGroup.PUT("/contacts/:id", contactHandler.UpdateContact)
		apiGroup.DELETE("/contacts/:id", contactHandler.DeleteContact)
		apiGroup.POST("/contacts/import", contactHandler.ImportContacts)
		apiGroup.GET("/contacts/export", contactHandler.ExportContacts)

		apiGroup.POST("/transmissions", transmissionHandler.StartTransmission)
		apiGroup.GET("/transmissions", transmissionHandler.GetHistory)
		apiGroup.GET("/transmissions/:id", transmissionHandler.GetRunStatus)

		sessionGroup := apiGroup.Group("/session")
		{
			sessionGroup.GET("", sessionHandler.GetStatus)
			sessionGroup.POST("/check", sessionHandler.CheckSession)
			sessionGroup.POST("/pair", sessionHandler.Pair)
			sessionGroup.POST("/pair/resend", sessionHandler.ResendCode)
			sessionGroup.POST("/qr", sessionHandler.RequestQR)
			sessionGroup.POST("/restart", sessionHandler.Restart)
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
