package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"coffeeshop/internal/config"
	"coffeeshop/internal/handler"
	"coffeeshop/internal/infra/auth"
	"coffeeshop/internal/infra/cache"
	"coffeeshop/internal/infra/db"
	"coffeeshop/internal/infra/event"
	infraRepo "coffeeshop/internal/infra/repository"
	"coffeeshop/internal/logger"
	"coffeeshop/internal/repository"
	"coffeeshop/internal/server"
	"coffeeshop/internal/usecase"
	"coffeeshop/internal/validator"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	//.envが無くても環境変数だけで動かす
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.GoEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	favoriteRepo := infraRepo.NewFavoriteGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//ゲスト端末の対応表（REDIS_ADDRがあればRedis）
	var guests repository.GuestDeviceStore = infraRepo.NewGuestDeviceGormStore(gormDB)
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer rdb.Close()
		guests = cache.NewGuestDeviceRedisStore(rdb, 0)
	}

	//注文イベント（KAFKA_BROKERSがあればKafka）
	var events usecase.OrderEventPublisher = event.NopOrderPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		pub := event.NewOrderKafkaPublisher(
			event.NewOrderWriter(cfg.KafkaBrokers, cfg.KafkaOrderTopic),
			log.With().Str("component", "order_events").Logger(),
		)
		defer pub.Close()
		events = pub
	}

	//Usecase生成
	provider := auth.NewProvider(userRepo, cfg.JWTSecret, cfg.AccessTokenTTL)
	identityUC := usecase.NewIdentityUsecase(
		provider,
		userRepo,
		guests,
		validator.NewAuthValidator(userRepo),
		cfg.GuestEmailDomain,
		log.With().Str("component", "identity").Logger(),
	)
	productUC := usecase.NewProductUsecase(productRepo, txm)
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txm, cartRepo, events, log.With().Str("component", "order").Logger())
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, events, log.With().Str("component", "admin_order").Logger())
	favoriteUC := usecase.NewFavoriteUsecase(favoriteRepo, productRepo)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	e := server.New(cfg, log, userRepo, server.Handlers{
		Auth:          handler.NewAuthHandler(identityUC),
		Product:       handler.NewProductHandler(productUC),
		Cart:          handler.NewCartHandler(cartUC),
		Order:         handler.NewOrderHandler(orderUC),
		Favorite:      handler.NewFavoriteHandler(favoriteUC),
		AdminOrder:    handler.NewAdminOrderHandler(adminOrderUC),
		AdminProduct:  handler.NewAdminProductHandler(productUC),
		AdminUser:     handler.NewAdminUserHandler(identityUC),
		AdminAuditLog: handler.NewAdminAuditLogHandler(auditUC),
	})

	//Server起動
	if err := server.Start(ctx, e, ":"+cfg.Port, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
