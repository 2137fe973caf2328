package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/config"
	"github.com/yourusername/challengequest-api/internal/handler"
	"github.com/yourusername/challengequest-api/internal/middleware"
	pgRepo "github.com/yourusername/challengequest-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/challengequest-api/internal/repository/redis"
	"github.com/yourusername/challengequest-api/internal/service"
	"github.com/yourusername/challengequest-api/internal/service/progression"
	ws "github.com/yourusername/challengequest-api/internal/websocket"
	"github.com/yourusername/challengequest-api/pkg/auth"
	"github.com/yourusername/challengequest-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	migrationsURL := os.Getenv("MIGRATIONS_URL")
	if err := database.MigrateDB(db, migrationsURL); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	categoryRepo := pgRepo.NewCategoryRepo(db)
	challengeRepo := pgRepo.NewChallengeRepo(db)
	levelRepo := pgRepo.NewLevelRepo(db)
	progressionStore := pgRepo.NewProgressionStore(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient, cfg.Redis.KeyPrefix)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}
	leaderboardRepo, err := redisRepo.NewLeaderboardRepo(redisClient, cfg.Redis.KeyPrefix)
	if err != nil {
		log.Printf("Failed to initialize LeaderboardRepo: %v", err)
		os.Exit(1)
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL(), cfg.JWT.WSTicketTTL(), cacheRepo)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Создаем контекст с отменой для корректного завершения работы горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Инициализация WebSocket ---
	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{}
	if cfg.WebSocket.PubSubEnabled {
		log.Println("Инициализация Redis PubSub для ретрансляции событий WebSocket...")
		redisProvider, errProv := ws.NewRedisPubSub(redisClient)
		if errProv != nil {
			log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Ретрансляция будет неактивна.", errProv)
		} else {
			pubSubProvider = redisProvider
		}
	}
	wsHub := ws.NewHub()
	wsManager := ws.NewManager(wsHub, pubSubProvider, cfg.WebSocket.PubSubChannel)
	if err := wsManager.Start(ctx); err != nil {
		log.Printf("Failed to start WebSocket manager: %v", err)
		os.Exit(1)
	}

	// --- Email ---
	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.Enabled {
		resendService, errEmail := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if errEmail != nil {
			log.Printf("Failed to initialize email service: %v", errEmail)
			os.Exit(1)
		}
		emailService = resendService
	}

	// Инициализируем сервисы
	notifier := service.NewProgressNotifier(wsManager, leaderboardRepo, userRepo, emailService)
	engine := progression.NewEngine(progressionStore, notifier, &progression.Config{
		RequireLocationProximity: cfg.Progression.RequireLocationProximity,
		DefaultRadiusMeters:      cfg.Progression.DefaultRadiusMeters,
		XPPerLevel:               cfg.Progression.XPPerLevel,
		MatchQRContent:           cfg.Progression.MatchQRContent,
	})

	authService, err := service.NewAuthService(userRepo, jwtService, leaderboardRepo)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}
	challengeService := service.NewChallengeService(challengeRepo, categoryRepo)
	categoryService := service.NewCategoryService(categoryRepo)
	levelService := service.NewLevelService(levelRepo, userRepo, leaderboardRepo, cacheRepo, cfg.Cache.LevelsTTL(), cfg.Progression.XPPerLevel)
	userService := service.NewUserService(userRepo, leaderboardRepo, levelService, engine)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService)
	challengeHandler := handler.NewChallengeHandler(challengeService, engine)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	levelHandler := handler.NewLevelHandler(levelService)
	userHandler := handler.NewUserHandler(userService)
	wsHandler := handler.NewWSHandler(wsManager, jwtService, cfg.WebSocket.AllowedOrigins, ws.ClientConfig{
		BufferSize:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: int64(cfg.WebSocket.MaxMessageSize),
	})

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(middleware.NewRedisCounter(redisClient), cfg.Redis.KeyPrefix)
	var authLimit, submitLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }, func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		authLimit = rateLimiter.Limit(middleware.AuthRateLimitConfig(
			cfg.RateLimit.AuthRequests, time.Duration(cfg.RateLimit.AuthWindowSec)*time.Second))
		submitLimit = rateLimiter.Limit(middleware.SubmitRateLimitConfig(
			cfg.RateLimit.SubmitRequests, time.Duration(cfg.RateLimit.SubmitWindowSec)*time.Second))
	}

	// Инициализируем роутер Gin
	router := gin.Default()

	// В production не доверяем прокси-заголовкам (защита от IP spoofing), в development доверяем localhost
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"time":      time.Now().UTC(),
			"websocket": wsManager.GetMetrics(),
		})
	})

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authLimit, authHandler.Register)
			authGroup.POST("/login", authLimit, authHandler.Login)

			authedAuth := authGroup.Group("")
			authedAuth.Use(authMiddleware.RequireAuth())
			{
				authedAuth.POST("/logout", authHandler.Logout)
				authedAuth.GET("/me", authHandler.GetMe)
				authedAuth.POST("/ws-ticket", authHandler.GetWsTicket)
			}
		}

		// Челленджи
		challenges := api.Group("/challenges")
		{
			challenges.GET("", challengeHandler.ListChallenges)
			challenges.GET("/:id", middleware.ExtractUintParam("id", "challengeID"), challengeHandler.GetChallenge)

			authedChallenges := challenges.Group("")
			authedChallenges.Use(authMiddleware.RequireAuth())
			{
				authedChallenges.POST("/join", challengeHandler.JoinChallenge)
				authedChallenges.POST("/submit-stage", submitLimit, challengeHandler.SubmitStage)
				authedChallenges.GET("/user/my-challenges", challengeHandler.GetMyChallenges)
				authedChallenges.POST("/:id/abandon", middleware.ExtractUintParam("id", "challengeID"), challengeHandler.AbandonChallenge)
			}
		}

		api.GET("/categories", categoryHandler.ListCategories)
		api.GET("/levels", levelHandler.ListLevels)

		// Лидерборд (публичный маршрут)
		api.GET("/leaderboard", userHandler.GetLeaderboard)
		api.GET("/users/me/stats", authMiddleware.RequireAuth(), userHandler.GetMyStats)

		// Администрирование
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
		{
			admin.POST("/challenges", challengeHandler.CreateChallenge)
			adminChallenge := admin.Group("/challenges/:id")
			adminChallenge.Use(middleware.ExtractUintParam("id", "challengeID"))
			{
				adminChallenge.PUT("", challengeHandler.UpdateChallenge)
				adminChallenge.DELETE("", challengeHandler.DeleteChallenge)
				adminChallenge.GET("/export", challengeHandler.ExportParticipants)
			}

			admin.POST("/categories", categoryHandler.CreateCategory)
			admin.PUT("/categories/:id", middleware.ExtractUintParam("id", "categoryID"), categoryHandler.UpdateCategory)
			admin.DELETE("/categories/:id", middleware.ExtractUintParam("id", "categoryID"), categoryHandler.DeleteCategory)

			admin.POST("/levels", levelHandler.CreateLevel)
			admin.POST("/levels/recompute", levelHandler.RecomputeLevels)
			admin.PUT("/levels/:id", middleware.ExtractUintParam("id", "levelID"), levelHandler.UpdateLevel)
			admin.DELETE("/levels/:id", middleware.ExtractUintParam("id", "levelID"), levelHandler.DeleteLevel)

			admin.PUT("/users/:id/active", middleware.ExtractUintParam("id", "targetUserID"), userHandler.SetUserActive)
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Дожидаемся писем, отправка которых уже началась
	notifier.Wait()

	// Отправляем сигнал завершения для всех горутин
	cancel()

	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		sqlDB.Close()
	}

	log.Println("Server exited properly")
}
