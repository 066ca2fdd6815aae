package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/devcamper/bootcamp-api/internal/cache"
	"github.com/devcamper/bootcamp-api/internal/config"
	"github.com/devcamper/bootcamp-api/internal/handlers"
	"github.com/devcamper/bootcamp-api/internal/observability"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
	"github.com/devcamper/bootcamp-api/internal/services"
	"github.com/devcamper/bootcamp-api/internal/utils"
)

const serviceName = "devcamper-api"

type mongoPinger struct{ client *mongo.Client }

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
		if err != nil {
			log.WithError(err).Fatal("tracer init failed")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		cancel()
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	db := client.Database(cfg.MongoDatabase)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to ensure indexes")
	}
	cancel()
	log.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// --- Geocoder cache: redis when configured, in-process otherwise ---
	var geoCache cache.Cache = cache.NewMemory(cfg.GeocoderCacheTTL)
	if cfg.RedisAddr != "" {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Dial(rctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rcancel()
		if err != nil {
			log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, using in-memory geocode cache")
		} else {
			defer rdb.Close()
			geoCache = cache.NewRedis(rdb, serviceName+":")
		}
	}
	geocoder := services.NewCachedGeocoder(
		services.NewMapQuestGeocoder(cfg.GeocoderURL, cfg.GeocoderAPIKey, nil),
		geoCache, cfg.GeocoderCacheTTL, log,
	)

	tokens, err := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTExpire)
	if err != nil {
		log.WithError(err).Fatal("jwt manager init failed")
	}

	aggregates := services.NewAggregateMaintainer(
		mongodb.NewAveragesRepo(db, prom), log, prom, cfg.AggregateWorkers, cfg.AggregateQueue,
	)
	aggregates.Start(context.Background())

	h := handlers.NewHandler(handlers.Deps{
		Bootcamps:     mongodb.NewBootcampsRepo(db, prom),
		Courses:       mongodb.NewCoursesRepo(db, prom),
		Reviews:       mongodb.NewReviewsRepo(db, prom),
		Users:         mongodb.NewUsersRepo(db, prom),
		Lister:        query.NewExecutor(db, prom),
		Aggregates:    aggregates,
		Geocoder:      geocoder,
		Photos:        services.NewDiskPhotoStore(cfg.FileUploadPath),
		Tokens:        tokens,
		Passwords:     utils.NewPasswordHasher(cfg.BcryptCost),
		DB:            mongoPinger{client: client},
		Log:           log,
		MaxFileUpload: cfg.MaxFileUpload,
	})

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"}
	corsCfg.ExposeHeaders = []string{"X-Request-Id"}
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}

	router := handlers.NewRouter(h,
		otelgin.Middleware(serviceName),
		prom.GinHandleMiddleware(),
		cors.New(corsCfg),
	)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.MaxMultipartMemory = cfg.MaxFileUpload + 1<<20

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	aggregates.Stop()
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Error("mongo disconnect failed")
	}
	log.Info("shutdown complete")
}
