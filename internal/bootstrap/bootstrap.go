// Package bootstrap builds the components shared by the server and the
// cronjob runner from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"custody-backend/internal/artifact"
	"custody-backend/internal/config"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"
	"custody-backend/internal/repository/memory"
	"custody-backend/internal/repository/postgres"
	"custody-backend/internal/repository/sqlite"
	"custody-backend/internal/security"
	"custody-backend/internal/service"
)

// Store is an opened asset store together with its lifecycle hooks.
type Store struct {
	Assets repository.AssetRepository
	Ping   func(ctx context.Context) error
	Close  func() error
}

// OpenStore opens the configured database driver.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(db)
		if cfg.Database.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		logger.Info("Database connection established", "driver", "postgres")
		return &Store{Assets: store, Ping: db.PingContext, Close: store.Close}, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Database connection established", "driver", "sqlite", "path", cfg.Database.Path)
		return &Store{Assets: store, Ping: store.Ping, Close: store.Close}, nil
	case "memory":
		logger.Warn("Using in-memory asset store; records are lost on exit")
		return &Store{
			Assets: memory.NewStore(),
			Ping:   func(context.Context) error { return nil },
			Close:  func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// NewLocator builds the artifact locator from the detail URL template.
func NewLocator(cfg *config.Config) (artifact.Locator, error) {
	return artifact.NewTemplateLocator(cfg.Artifact.DetailURLTemplate)
}

// NewNotifier builds the admin notification service on the configured mailer.
func NewNotifier(cfg *config.Config, locator artifact.Locator) (service.NotificationService, error) {
	e := cfg.Email
	mailer, err := service.NewMailer(e.Provider, e.SMTPHost, e.SMTPPort, e.SMTPUser, e.SMTPPassword, e.From, e.FromName, e.SendGridAPIKey)
	if err != nil {
		return nil, err
	}
	return service.NewNotificationService(mailer, e.AdminRecipients, locator), nil
}

// NewIdentityOracle builds the token oracle for the configured provider,
// fronted by API keys when any are registered.
func NewIdentityOracle(ctx context.Context, cfg *config.Config) (security.IdentityOracle, error) {
	id := cfg.Identity
	var tokens security.IdentityOracle
	switch id.Provider {
	case "jwt":
		tokens = security.NewJWTOracle(security.NewTokenManager(id.JWTSecret, id.JWTIssuer), id.AdminRole)
	case "firebase":
		fb, err := security.NewFirebaseOracle(ctx, id.Firebase.ProjectID, id.Firebase.CredentialsFile, id.AdminRole)
		if err != nil {
			return nil, err
		}
		tokens = fb
	default:
		return nil, fmt.Errorf("unknown identity provider %q", id.Provider)
	}
	if len(id.APIKeys) == 0 {
		return tokens, nil
	}

	keys := make([]security.APIKey, 0, len(id.APIKeys))
	for _, k := range id.APIKeys {
		keys = append(keys, security.APIKey{
			ID:         k.ID,
			SecretHash: []byte(k.SecretHash),
			Principal:  k.Principal,
			Admin:      k.Admin,
		})
	}
	return security.NewChainOracle(security.NewAPIKeyOracle(keys), tokens), nil
}
