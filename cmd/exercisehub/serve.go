package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exercisehub/internal/admin"
	"exercisehub/internal/asset"
	"exercisehub/internal/auth"
	"exercisehub/internal/cache"
	"exercisehub/internal/editorial"
	"exercisehub/internal/exercise"
	"exercisehub/internal/index"
	"exercisehub/internal/notify"
	"exercisehub/internal/overrides"
	synchub "exercisehub/internal/sync"
	"exercisehub/pkg/utils"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

type app struct {
	router  *gin.Engine
	hub     *synchub.Hub
	udp     *notify.Server
	closeKV func()
}

func buildApp(ctx context.Context, cfg utils.Config, logger *zap.Logger) (*app, error) {
	cat, err := index.LoadCatalog(cfg.Data.IndexPath, cfg.Data.CatalogPath)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", zap.Int("codes", len(cat.Codes())), zap.String("index", cfg.Data.IndexPath))

	kv, closeKV, err := openKV(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	store := overrides.NewStore(kv, logger)

	tagged := cache.NewTagged(cfg.Cache.TTL)
	pages := cache.NewPages(cfg.Cache.TTL)
	hub := synchub.NewHub(logger)

	coOpts := []cache.Option{
		cache.WithTagInvalidator(tagged),
		cache.WithPathInvalidator(pages),
		cache.WithNotifier(hub),
	}
	var udp *notify.Server
	if cfg.Sync.UDPAddr != "" {
		udp = notify.NewServer(cfg.Sync.UDPAddr, notify.NewRegistry(), logger)
		coOpts = append(coOpts, cache.WithNotifier(udp))
	}
	if cfg.Cache.PurgeWebhook != "" {
		coOpts = append(coOpts, cache.WithWebhook(cache.NewWebhookPurger(cfg.Cache.PurgeWebhook, cfg.Cache.PurgeToken, cfg.Store.Timeout)))
	}
	coordinator := cache.NewCoordinator(logger, coOpts...)

	publicFS := os.DirFS(cfg.Data.PublicRoot)
	svc := exercise.NewService(cat, store,
		exercise.WithAssets(asset.NewResolver(publicFS, logger)),
		exercise.WithClassifier(editorial.NewClassifier(os.DirFS(cfg.Editorial.Root), cfg.Editorial.MasterGlob, cfg.Editorial.ReportGlob, tagged, logger)),
		exercise.WithCache(tagged),
		exercise.WithInvalidator(coordinator),
		exercise.WithFallbackImage(cfg.Data.FallbackImage),
		exercise.WithLogger(logger),
	)

	guard := auth.Guard{
		Secret: []byte(cfg.Admin.JWTSecret),
		Issuer: cfg.Admin.JWTIssuer,
		TTL:    cfg.Admin.TokenTTL,
	}
	if !guard.Configured() {
		logger.Warn("admin disabled: no jwt secret configured")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "codes": len(cat.Codes())})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			// reads still work on base data
			c.JSON(http.StatusOK, gin.H{
				"status":      "degraded",
				"kv_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"kv":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", synchub.WSHandler(hub))

	// Public catalog, page-cached
	public := router.Group("")
	public.Use(pages.Middleware())
	exercise.NewHandler(svc).RegisterRoutes(public)

	// Admin
	adminGroup := router.Group("/admin")
	authHandler := auth.NewHandler(guard, cfg.Admin.PasswordHash, logger)
	authHandler.Secure = cfg.HTTP.SecureCookies
	authHandler.RegisterRoutes(adminGroup)
	admin.NewHandler(svc, store, guard, coordinator, logger).RegisterRoutes(adminGroup)

	// Hero images and other static files under the public root
	files := http.FileServer(http.FS(publicFS))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})

	return &app{router: router, hub: hub, udp: udp, closeKV: closeKV}, nil
}

func serve(cfg utils.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.closeKV()

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	if cfg.Sync.TCPAddr != "" {
		tcpSrv := synchub.NewServer(cfg.Sync.TCPAddr, a.hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tcpSrv.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	if a.udp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.udp.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP API server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}
	stop()

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	a.hub.Close()

	wg.Wait()
	logger.Info("servers stopped")
	return runErr
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	l := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("cache", c.Writer.Header().Get("X-Cache")),
		)
	}
}
