// Command oauthctl administers the OAuth2 server's database: clients, scopes,
// resource owners and tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/cache"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/config"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/database"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/events"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetLevel(log.WarnLevel)
	database.SetLogLevel(log.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	env := &environment{}
	cmd := &cobra.Command{
		Use:           "oauthctl",
		Short:         "Administer OAuth2 clients, scopes, users and tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			env.close()
		},
	}
	cmd.PersistentFlags().BoolVarP(&env.verbose, "verbose", "v", false, "log at debug level")
	cmd.AddCommand(
		newClientCommand(env),
		newScopeCommand(env),
		newUserCommand(env),
		newTokenCommand(env),
	)
	return cmd
}

// environment opens the configured database and integrations on first use.
type environment struct {
	verbose bool

	config  *config.Config
	db      *gorm.DB
	closers []func() error
}

func (e *environment) open(ctx context.Context) (*gorm.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	if e.verbose {
		log.SetLevel(log.DebugLevel)
		database.SetLogLevel(log.DebugLevel)
	}
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.InitDatabase(ctx, conf.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		return nil, err
	}
	e.config, e.db = conf, db
	return db, nil
}

// tokenManager builds a lifecycle manager that evicts cached tokens and
// publishes revocations the same way the server does.
func (e *environment) tokenManager(ctx context.Context) (*auth.TokenManager, error) {
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := config.NewSettingsStore(e.config.Settings(), e.config.SettingsFile)
	if err != nil {
		return nil, err
	}

	var store auth.TokenRepository = services.NewTokenService(db)
	if e.config.RedisURL != "" {
		client, err := cache.Connect(ctx, e.config.RedisURL)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		store = cache.New(store, client, 0)
	}

	var opts []auth.TokenManagerOption
	if e.config.AMQPURL != "" {
		publisher, err := events.Dial(e.config.AMQPURL, e.config.AMQPExchange)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, publisher.Close)
		opts = append(opts, auth.WithRevocationNotifier(publisher))
	}
	return auth.NewTokenManager(store, settings, opts...), nil
}

func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
	if e.db != nil {
		if sqlDB, err := e.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
