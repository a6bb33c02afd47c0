//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject

package app

import (
	"context"

	"ludus/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	appBuilder := provideAppBuilder(cfg, opts)
	app, err := provideBuiltApp(appBuilder, ctx)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func provideAppBuilder(cfg *config.Config, opts []AppBuilderOption) *AppBuilder {
	return NewAppBuilder(cfg, opts...)
}

type builderDeps interface {
	Build(context.Context) (*App, error)
}

func provideBuiltApp(b builderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}
