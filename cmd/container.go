// cmd/container.go
//
// Root composition root. Owns infrastructure (Postgres, Redis, SES) and
// wires the authorization engine. This is the only place that knows about
// all modules.
package main

import (
	"context"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/vantak/gatehouse/pkg/asyncx"
	"github.com/vantak/gatehouse/pkg/authz/audit"
	"github.com/vantak/gatehouse/pkg/authz/ipfilter"
	"github.com/vantak/gatehouse/pkg/authz/scopes"
	"github.com/vantak/gatehouse/pkg/authz/session"
	"github.com/vantak/gatehouse/pkg/authz/session/sessioninfra"
	"github.com/vantak/gatehouse/pkg/authz/tenant"
	"github.com/vantak/gatehouse/pkg/authz/tenant/tenantinfra"
	"github.com/vantak/gatehouse/pkg/cachex"
	"github.com/vantak/gatehouse/pkg/cachex/cachexredis"
	"github.com/vantak/gatehouse/pkg/config"
	"github.com/vantak/gatehouse/pkg/jobx"
	"github.com/vantak/gatehouse/pkg/jobx/jobxredis"
	"github.com/vantak/gatehouse/pkg/logx"
	"github.com/vantak/gatehouse/pkg/notifx"
	"github.com/vantak/gatehouse/pkg/notifx/notifxconsole"
	"github.com/vantak/gatehouse/pkg/notifx/notifxqueue"
	"github.com/vantak/gatehouse/pkg/notifx/notifxses"
)

// reminderEmailTemplate is the HTML body for the 2FA grace reminder.
const reminderEmailTemplate = `
<p>Hello {{.Email}},</p>
<p>Your organization <b>{{.TenantName}}</b> requires two-factor authentication.
You have {{.Remaining}} grace login(s) left before access is blocked.</p>
<p>Please enable two-factor authentication in your account settings.</p>`

// Container holds shared infrastructure and the composed engine.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB    *sqlx.DB
	Redis *redis.Client
	Cache cachex.Store
	Jobs  *jobx.Client

	// Engine
	TenantResolver *tenant.Resolver
	Engine         *session.Engine

	stopJobs context.CancelFunc
}

// NewContainer wires everything from configuration.
func NewContainer(cfg *config.Config) *Container {
	logx.Info("Initializing application container...")

	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initEngine()

	logx.Info("Application container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	// Postgres and Redis come up independently; connect in parallel.
	dbF := asyncx.Run(func() (*sqlx.DB, error) {
		db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
		db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
		db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
		return db, nil
	})
	redisF := asyncx.Run(func() (*redis.Client, error) {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Address(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			return nil, err
		}
		return rdb, nil
	})

	db, err := dbF.Await()
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	c.DB = db
	logx.Info("Database connected")

	rdb, err := redisF.Await()
	if err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	c.Redis = rdb
	c.Cache = cachexredis.NewRedisStore(c.Redis)
	logx.Info("Redis connected")

	c.Jobs = jobx.NewClient(jobxredis.NewRedisQueue(c.Redis),
		jobx.WithQueues(notifxqueue.QueueName),
		jobx.WithConcurrency(2),
	)
}

func (c *Container) initEngine() {
	// Scope graph: file-configured or the built-in platform hierarchy.
	graph := scopes.DefaultGraph()
	if path := c.Config.Engine.ScopeGraphPath; path != "" {
		loaded, err := scopes.LoadGraph(path)
		if err != nil {
			logx.Fatalf("Failed to load scope graph: %v", err)
		}
		graph = loaded
		logx.Infof("Scope graph loaded from %s", path)
	}
	scopeResolver := scopes.NewResolver(graph)

	recorder := audit.NewLogxRecorder()
	filter := ipfilter.NewFilter(c.Cache, recorder, c.Config.Engine.AddressMarkerTTL)

	c.TenantResolver = tenant.NewResolver(
		tenantinfra.NewPostgresTenantRepository(c.DB),
		c.Cache,
		nil, // default Postgres connector
		c.Config.Engine.TenantCacheTTL,
	)

	if c.Config.Engine.TokenSigningKey == "" {
		logx.Fatal("TOKEN_SIGNING_KEY is required")
	}
	verifier := session.NewVerifier(c.Config.Engine.TokenSigningKey)

	engine, err := session.NewEngine(
		sessioninfra.NewPostgresTokenRepository(c.DB),
		sessioninfra.NewPostgresUserRepository(c.DB),
		c.TenantResolver,
		scopeResolver,
		filter,
		recorder,
		verifier,
		session.WithNotifier(c.initNotifier()),
	)
	if err != nil {
		logx.Fatalf("Failed to wire session engine: %v", err)
	}
	c.Engine = engine
	logx.Info("Authorization engine wired")

	jobsCtx, cancel := context.WithCancel(context.Background())
	c.stopJobs = cancel
	go func() {
		if err := c.Jobs.Start(jobsCtx); err != nil {
			logx.Errorf("Notification workers stopped with error: %v", err)
		}
	}()
}

// initNotifier builds the notification path: a notifx client over the
// configured provider handles the actual sends inside the jobx workers,
// while the engine enqueues through the queued sender.
func (c *Container) initNotifier() session.Notifier {
	var provider notifx.EmailSender
	switch c.Config.Notify.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
			awsConfig.WithRegion(c.Config.Notify.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		provider = notifxses.NewSESProvider(ses.NewFromConfig(awsCfg), c.Config.Notify.FromAddress)
		logx.Infof("SES notifier configured (region: %s)", c.Config.Notify.AWSRegion)
	default:
		provider = notifxconsole.NewConsoleProvider()
		logx.Info("Console notifier configured")
	}

	client := notifx.NewClient(provider)
	if err := client.RegisterTemplate("two_factor_reminder", reminderEmailTemplate); err != nil {
		logx.Fatalf("Failed to register reminder template: %v", err)
	}

	notifxqueue.RegisterHandler(c.Jobs, client)
	return notifxqueue.NewQueuedSender(c.Jobs)
}

// Cleanup releases shared resources.
func (c *Container) Cleanup() {
	logx.Info("Cleaning up resources...")

	if c.stopJobs != nil {
		c.stopJobs()
	}
	if c.TenantResolver != nil {
		c.TenantResolver.Close()
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		}
	}

	logx.Info("Cleanup complete")
}
