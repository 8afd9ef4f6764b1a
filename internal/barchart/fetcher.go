package barchart

import (
	"context"
	"fmt"

	"ebird-barchart/internal/components/assert"
	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/internal/config"
)

const report_fetcher_fetch = "fetcher.fetch"

// Session retrieves bar chart datasets once authenticated.
type Session interface {
	// Barchart returns the bar chart dataset of a region, the value must be JSON serializable.
	Barchart(ctx context.Context, regionCode string) (any, error)
}

// Authenticator establishes a Session from a username and password.
//
// note: fault injection point
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Session, error)
}

// AuthenticatorFunc allows the use of ordinary functions as an Authenticator.
type AuthenticatorFunc func(ctx context.Context, username, password string) (Session, error)

func (f AuthenticatorFunc) Login(ctx context.Context, username, password string) (Session, error) {
	return f(ctx, username, password)
}

// DatasetFetcher is what the Downloader fetches datasets with.
type DatasetFetcher interface {
	Fetch(ctx context.Context, regionCode string) (any, error)
}

// Fetcher fetches datasets through an Authenticator. It logs in on the
// first fetch and reuses the session afterwards, failed logins are retried
// by the next fetch.
type Fetcher struct {
	auth Authenticator
	cfg  config.Config
	tel  telemetry.API

	session Session
}

func NewFetcher(auth Authenticator, cfg config.Config, tel telemetry.API) *Fetcher {
	assert.NotNil(auth)
	assert.NotNil(tel)
	return &Fetcher{
		auth: auth,
		cfg:  cfg,
		tel:  telemetry.NewScopedAPI("barchart", tel),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, regionCode string) (any, error) {
	err := f.cfg.RequireCredentials()
	if err != nil {
		return nil, err
	}

	if f.session == nil {
		session, err := f.auth.Login(ctx, f.cfg.Username, f.cfg.Password)
		if err != nil {
			f.tel.ReportBroken(report_fetcher_fetch, fmt.Errorf("login: %w", err), regionCode)
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		f.session = session
	}

	dataset, err := f.session.Barchart(ctx, regionCode)
	if err != nil {
		return nil, fmt.Errorf("load bar chart for %s: %w", regionCode, err)
	}
	return dataset, nil
}
