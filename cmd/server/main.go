package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"assessment-system/internal/assessment"
	"assessment-system/internal/audit"
	"assessment-system/internal/auth"
	"assessment-system/internal/catalog"
	"assessment-system/internal/ledger"
	"assessment-system/internal/models"
	"assessment-system/pkg/cache"
	"assessment-system/pkg/database"
	"assessment-system/pkg/events"

	"github.com/gorilla/mux"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Initialize database
	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Quiz{},
		&models.Question{},
		&models.Option{},
		&models.Attempt{},
		&models.Answer{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))

	// Initialize domain event hub
	hub := events.NewHub()
	go hub.Run()

	// Initialize repositories
	catalogRepo := catalog.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	auditor := audit.NewRecorder(db)

	// Initialize services
	catalogService := catalog.NewService(catalogRepo, redisCache)
	assessmentService := assessment.NewService(
		catalogService,
		ledgerRepo,
		auth.RoleAuthorizer{},
		auditor,
		hub,
	)

	// Initialize handlers
	assessmentHandler := assessment.NewHandler(assessmentService)

	// Setup router
	router := mux.NewRouter()

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "http://localhost:3000"
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	// Assessment routes - resolved principal required
	jwtSecret := os.Getenv("JWT_SECRET")
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.PrincipalMiddleware(jwtSecret))

	apiRouter.HandleFunc("/quizzes", assessmentHandler.ListQuizzes).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/quizzes", assessmentHandler.CreateQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{quizID}", assessmentHandler.GetQuiz).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{quizID}/start", assessmentHandler.StartAttempt).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{quizID}/submit", assessmentHandler.SubmitAttempt).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{quizID}/attempts", assessmentHandler.ListAttempts).Methods("GET", "OPTIONS")

	// Module activity feed
	router.HandleFunc("/ws/modules/{moduleID}", hub.HandleWebSocket)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown gracefully")
}
