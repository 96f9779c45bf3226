package main

import (
	"bufio"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"staywatch/internal/aggregate"
	"staywatch/internal/clock"
	"staywatch/internal/config"
	"staywatch/internal/database"
	"staywatch/internal/fetch"
	"staywatch/internal/handlers"
	"staywatch/internal/ratelimit"
	"staywatch/internal/reconcile"
	"staywatch/internal/scheduler"
	"staywatch/internal/search"
	"staywatch/internal/store"
	"staywatch/internal/targets"
)

func main() {
	configPath := getEnv("CONFIG_PATH", "config/staywatch.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s (tier %s)", configPath, appConfig.Crawler.Tier)
	}

	st, err := database.OpenStore(&appConfig.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	if err := st.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	if appConfig.Crawler.StationsFile != "" {
		_, err := targets.LoadFromFile(st,
			appConfig.Crawler.StationsFile,
			appConfig.Crawler.TargetPriorities,
			appConfig.Crawler.SearchRadiusKM)
		if err != nil {
			log.Printf("Warning: Failed to load targets: %v", err)
		}
	}

	searchClient := initSearch(appConfig)

	clk := clock.Real()
	governor := ratelimit.NewGovernor(governorConfig(appConfig), clk)
	identities := ratelimit.NewIdentityPool(
		appConfig.Identity.UserAgents,
		loadProxies(appConfig),
		appConfig.Identity.GetRotateInterval(),
		appConfig.Identity.GetProxyCooldown(),
		clk,
	)

	client, err := fetch.NewHTTPClient(fetch.HTTPClientConfig{
		BaseURL:  appConfig.Crawler.APIBaseURL,
		APIKey:   appConfig.Crawler.APIKey,
		Currency: appConfig.Crawler.Currency,
		Timeout:  appConfig.Crawler.GetTimeout(),
	}, identities)
	if err != nil {
		log.Fatalf("Failed to build fetch client: %v", err)
	}

	reconciler := reconcile.NewEngine(st, appConfig.Reconcile, clk)
	aggregator := aggregate.NewEngine(st, clk)

	// A typed nil would make the interface non-nil, so only assign when the
	// search client exists
	var indexer scheduler.Indexer
	if searchClient != nil {
		indexer = searchClient
	}

	runner := scheduler.NewRunner(st, client, indexer, appConfig, clk)
	dispatcher := scheduler.NewDispatcher(st, runner, governor, appConfig, clk)
	dispatcher.Start()
	defer dispatcher.Stop()

	sched := scheduler.NewScheduler(st, dispatcher, reconciler, aggregator, indexer, appConfig, clk, client.Host())
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	router := setupRouter(st, searchClient, sched, dispatcher, governor, identities)

	port := getEnv("PORT", "8080")
	log.Printf("API listening on :%s", port)

	go func() {
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
}

func setupRouter(st store.Store, searchClient *search.SearchClient, sched *scheduler.Scheduler, disp *scheduler.Dispatcher, gov *ratelimit.Governor, pool *ratelimit.IdentityPool) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	api := handlers.NewAPIHandler(st, searchClient)
	admin := handlers.NewAdminHandler(st, sched, disp, gov, pool)

	r.GET("/health", admin.HealthCheck)

	r.GET("/api/targets", api.GetTargets)
	r.GET("/api/targets/:id/stats", api.GetDailyStats)
	r.GET("/api/listings/search", api.SearchListings)
	r.GET("/api/listings/:id", api.GetListing)
	r.GET("/api/listings/:id/classifications", api.GetClassifications)
	r.GET("/api/listings/:id/history", api.GetListingHistory)

	r.GET("/api/admin/stats", admin.GetStats)
	r.GET("/api/admin/crawl-logs", admin.GetCrawlLogs)
	r.POST("/api/admin/sweeps/:kind", admin.TriggerSweep)
	r.POST("/api/admin/analysis", admin.TriggerAnalysis)
	r.POST("/api/admin/cleanup", admin.RunCleanup)

	return r
}

func initSearch(cfg *config.Config) *search.SearchClient {
	host := cfg.Search.Meilisearch.Host
	if host == "" {
		host = getEnv("MEILISEARCH_HOST", "")
	}
	if host == "" {
		log.Println("Meilisearch not configured, listing search disabled")
		return nil
	}

	apiKey := cfg.Search.Meilisearch.APIKey
	if apiKey == "" {
		apiKey = getEnv("MEILISEARCH_KEY", "")
	}

	client := search.NewSearchClient(host, apiKey)

	// Give Meilisearch a moment when starting together under compose
	time.Sleep(2 * time.Second)
	if err := client.InitIndex(); err != nil {
		log.Printf("Warning: Failed to initialize search index: %v", err)
	}
	return client
}

func governorConfig(cfg *config.Config) ratelimit.Config {
	low, high := cfg.Governor.DelayRange()
	return ratelimit.Config{
		DelayLow:               low,
		DelayHigh:              high,
		Jitter:                 cfg.Governor.GetJitter(),
		MaxMultiplier:          cfg.Governor.MaxBackoffMultiplier,
		DecayFactor:            cfg.Governor.DecayFactor,
		SuspendAfterSoftBlocks: cfg.Governor.SuspendAfterSoftBlocks,
		SuspendAfterHardErrors: cfg.Governor.SuspendAfterHardErrors,
		Cooldown:               cfg.Governor.GetCooldown(),
		MaxPerHour:             cfg.Governor.MaxRequestsPerHour,
		MaxPerDay:              cfg.Governor.DailyLimit,
	}
}

// loadProxies merges the inline proxy list with the proxy file, one URL per
// line, # for comments.
func loadProxies(cfg *config.Config) []string {
	proxies := append([]string{}, cfg.Identity.ProxyList...)

	path := cfg.Identity.ProxyFile
	if path == "" {
		return proxies
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Warning: Failed to open proxy file %s: %v", path, err)
		return proxies
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Warning: Failed to read proxy file %s: %v", path, err)
	}
	return proxies
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
