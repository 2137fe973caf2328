package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/config"
	pgRepo "github.com/yourusername/challengequest-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/challengequest-api/internal/repository/redis"
	"github.com/yourusername/challengequest-api/internal/service"
	"github.com/yourusername/challengequest-api/pkg/database"
)

// recompute-levels пересчитывает уровни всех пользователей после правки таблицы уровней
// и перестраивает рейтинг в Redis.
func main() {
	configPath := flag.String("config", "config/config.yaml", "путь к файлу конфигурации")
	skipLeaderboard := flag.Bool("skip-leaderboard", false, "не перестраивать рейтинг в Redis")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), gin.Mode() == gin.ReleaseMode)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		defer sqlDB.Close()
	}

	userRepo := pgRepo.NewUserRepo(db)
	levelRepo := pgRepo.NewLevelRepo(db)

	levelService := service.NewLevelService(levelRepo, userRepo, nil, nil, cfg.Cache.LevelsTTL(), cfg.Progression.XPPerLevel)

	if !*skipLeaderboard {
		redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		leaderboardRepo, err := redisRepo.NewLeaderboardRepo(redisClient, cfg.Redis.KeyPrefix)
		if err != nil {
			log.Fatalf("Failed to initialize LeaderboardRepo: %v", err)
		}
		cacheRepo, err := redisRepo.NewCacheRepo(redisClient, cfg.Redis.KeyPrefix)
		if err != nil {
			log.Fatalf("Failed to initialize CacheRepo: %v", err)
		}
		levelService = service.NewLevelService(levelRepo, userRepo, leaderboardRepo, cacheRepo, cfg.Cache.LevelsTTL(), cfg.Progression.XPPerLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := levelService.RecomputeAllLevels(ctx)
	if err != nil {
		log.Fatalf("Recompute failed: %v", err)
	}

	fmt.Printf("Обработано: %d, обновлено: %d, в рейтинге: %d\n", result.Processed, result.Updated, result.Ranked)
}
