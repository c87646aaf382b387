package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/ageniuscoder/shopdesk/backend/internal/attachments"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/cluster"
	"github.com/ageniuscoder/shopdesk/backend/internal/config"
	"github.com/ageniuscoder/shopdesk/backend/internal/conversations"
	"github.com/ageniuscoder/shopdesk/backend/internal/escalator"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
	"github.com/ageniuscoder/shopdesk/backend/internal/messages"
	"github.com/ageniuscoder/shopdesk/backend/internal/notify"
	"github.com/ageniuscoder/shopdesk/backend/internal/presence"
	"github.com/ageniuscoder/shopdesk/backend/internal/profile"
	"github.com/ageniuscoder/shopdesk/backend/internal/receipts"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage/postgres"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage/sqlite"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage/sqlstore"
	"github.com/ageniuscoder/shopdesk/backend/internal/support"
	"github.com/ageniuscoder/shopdesk/backend/internal/telemetry"
	"github.com/ageniuscoder/shopdesk/backend/internal/tenancy"
	"github.com/ageniuscoder/shopdesk/backend/internal/typing"
	"github.com/ageniuscoder/shopdesk/backend/internal/users"
)

type database struct {
	db      *sql.DB
	dialect sqlstore.Dialect
	migrate func() error
	ping    func(context.Context) error
}

func openDatabase(cfg config.Config) (database, error) {
	if cfg.DBDriver == "sqlite" {
		conn, err := sqlite.New(cfg.SQLITEDsn)
		if err != nil {
			return database{}, err
		}
		return database{db: conn.Db, dialect: sqlstore.Question, migrate: conn.Migrate, ping: conn.Ping}, nil
	}
	conn, err := postgres.New(cfg.DBDriver, cfg.PostgresDsn)
	if err != nil {
		return database{}, err
	}
	return database{db: conn.Db, dialect: sqlstore.Dollar, migrate: conn.Migrate, ping: conn.Ping}, nil
}

func notifier(cfg config.Config) notify.Notifier {
	var m notify.Multi
	if cfg.SendGridAPIKey != "" {
		m = append(m, notify.NewEmail(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.AlertEmailTo))
	}
	if cfg.TwilioSID != "" {
		m = append(m, notify.NewSMS(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, cfg.AlertSMSTo))
	}
	if len(m) == 0 {
		return notify.Nop{}
	}
	return m
}

func originAllowed(origins []string) func(string) bool {
	return func(origin string) bool {
		return slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	createAdmin := flag.Bool("create-admin", false, "create an admin (and its tenant) and exit")
	tenantID := flag.String("tenant", "", "tenant id for -create-admin")
	tenantName := flag.String("tenant-name", "", "tenant display name for -create-admin")
	adminName := flag.String("name", "", "admin name for -create-admin")
	adminPhone := flag.String("phone", "", "admin phone for -create-admin")
	adminPassword := flag.String("password", "", "admin password for -create-admin")
	flag.Parse()

	//config part
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Error initialising telemetry: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	//database handling
	dbase, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Error loading to database: %v", err)
	}
	defer dbase.db.Close()

	if *migrate {
		if err := dbase.migrate(); err != nil {
			log.Fatalf("Migration failed %v", err)
		}
		logger.Info("Migration Completed", "driver", cfg.DBDriver)
		return
	}

	store := sqlstore.New(dbase.db, dbase.dialect)

	if *createAdmin {
		u, err := users.CreateAdmin(ctx, store, users.AdminInput{
			TenantID: *tenantID, TenantName: *tenantName, Name: *adminName, Phone: *adminPhone, Password: *adminPassword,
		}, cfg.PhoneRegion)
		if err != nil {
			log.Fatalf("Create admin failed: %v", err)
		}
		logger.Info("Admin created", "user_id", u.ID, "tenant_id", u.TenantID)
		return
	}

	var (
		typingStore typing.Store = typing.NewMemory()
		leader      escalator.Leader
	)
	if cfg.NATSURL != "" {
		nc, js, err := cluster.Connect(ctx, cluster.Options{
			URL: cfg.NATSURL, User: cfg.NATSUser, Password: cfg.NATSPass, Name: cfg.ServiceName,
		})
		if err != nil {
			log.Fatalf("Error connecting to NATS: %v", err)
		}
		defer nc.Drain()

		kv, err := typing.NewKV(ctx, js)
		if err != nil {
			log.Fatalf("Error creating typing bucket: %v", err)
		}
		typingStore = kv

		le, err := cluster.NewLeaderElection(ctx, js, cluster.LeaderBucket, cluster.SweepKey, 15*time.Second, 5*time.Second)
		if err != nil {
			log.Fatalf("Error starting leader election: %v", err)
		}
		go le.Start(ctx)
		defer le.Stop()
		leader = le
		logger.Info("Clustered mode", "instance_id", le.InstanceID())
	}

	disk, err := attachments.NewDisk(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		log.Fatalf("Error preparing upload dir: %v", err)
	}

	hub := chat.NewHub(logger)
	go hub.Run(ctx)

	presenceTracker := presence.New(store, cfg.PresenceTimeout, nil)
	svc := support.New(store, presenceTracker, receipts.New(store, nil), typingStore,
		attachments.NewProcessor(disk, attachments.MaxSize), hub, support.Options{
			JWTSecret:   cfg.JWTSecret,
			TokenTTL:    cfg.JWTTTL,
			PhoneRegion: cfg.PhoneRegion,
			Logger:      logger,
		})

	esc := escalator.New(store, presenceTracker, escalator.Options{
		Window:      cfg.EscalationWindow,
		Interval:    cfg.SweepInterval,
		ItemTimeout: cfg.SweepItemTimeout,
		Leader:      leader,
		Publisher:   hub,
		Notifier:    notifier(cfg),
		Logger:      logger,
	})
	go esc.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestLogger(logger))
	r.Static(cfg.UploadBaseURL, disk.Dir())
	r.GET("/healthz", func(c *gin.Context) {
		if err := dbase.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		httpx.OK(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	users.RegisterPublic(api, users.Service{
		Store: store, JWTSecret: cfg.JWTSecret, JWTTTL: cfg.JWTTTL, PhoneRegion: cfg.PhoneRegion,
	})
	messages.Register(api, svc, cfg.JWTSecret)
	chat.RegisterWS(api, hub, svc, cfg.JWTSecret, originAllowed(cfg.CORSOrigins))

	authed := api.Group("", auth.JWTMiddleware(cfg.JWTSecret))
	profile.Register(authed, store)
	conversations.Register(authed.Group("/admin", auth.RequireAdmin()), svc, tenancy.NewGuard(store))

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	})(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server started", "addr", cfg.Addr, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}
