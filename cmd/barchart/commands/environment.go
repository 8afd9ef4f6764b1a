package commands

import (
	"context"
	"log/slog"

	"ebird-barchart/internal/barchart"
	"ebird-barchart/internal/components/chrono"
	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/internal/config"
	"ebird-barchart/internal/ebird/barchartweb"
	"ebird-barchart/internal/ebird/regioninfo"
	"ebird-barchart/internal/manifest"
	"ebird-barchart/lib/restyutil"
)

// Environment is everything the commands reach the outside world through.
type Environment struct {
	Tel   telemetry.API
	Clock chrono.API
	// InitLogging is called once the log level is known, it may be nil.
	InitLogging      func(level slog.Level)
	NewAuthenticator func(cfg config.Config, dump restyutil.Dumper, tel telemetry.API) (barchart.Authenticator, error)
	NewInfoSource    func(cfg config.Config, dump restyutil.Dumper, tel telemetry.API) manifest.InfoSource
}

func DefaultEnvironment() Environment {
	return Environment{
		Tel:              telemetry.SlogAPI{},
		Clock:            chrono.NewStandardImpl(),
		InitLogging:      telemetry.InitSlog,
		NewAuthenticator: newWebAuthenticator,
		NewInfoSource:    newRegionInfoSource,
	}
}

func newWebAuthenticator(cfg config.Config, dump restyutil.Dumper, tel telemetry.API) (barchart.Authenticator, error) {
	client, err := barchartweb.NewClient(barchartweb.ClientOptions{
		WebUrl:   cfg.Ebird.WebUrl,
		LoginUrl: cfg.Ebird.LoginUrl,
		Dump:     dump,
	}, tel)
	if err != nil {
		return nil, err
	}
	return barchart.AuthenticatorFunc(func(ctx context.Context, username, password string) (barchart.Session, error) {
		session, err := client.Login(ctx, username, password)
		if err != nil {
			// a typed nil would not compare equal to nil
			return nil, err
		}
		return session, nil
	}), nil
}

func newRegionInfoSource(cfg config.Config, dump restyutil.Dumper, tel telemetry.API) manifest.InfoSource {
	client := regioninfo.NewClient(cfg.Ebird.ApiUrl, cfg.ApiKey, tel)
	dump.Attach(client.Http)
	return client
}
