package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/leadboost/leadboost/internal/auth"
	"github.com/leadboost/leadboost/internal/store"
	sfpkg "github.com/leadboost/leadboost/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadboost.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initTokenManager() (*auth.TokenManager, error) {
	if cfg.Auth.SecretKey == "" {
		return nil, eris.New("auth secret key is required (LEADBOOST_AUTH_SECRET_KEY)")
	}
	return auth.NewTokenManager(
		cfg.Auth.SecretKey,
		time.Duration(cfg.Auth.AccessTokenExpireMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTokenExpireDays)*24*time.Hour,
	), nil
}

// initSalesforce builds the CRM client from JWT bearer credentials. Returns
// (nil, nil) when no client ID is configured; the CRM push is optional.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
