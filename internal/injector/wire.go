//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/behaviour/internal/config"
)

// InitializeApp loads the config at path and assembles the application.
func InitializeApp(path string) (*App, func(), error) {
	wire.Build(config.Load, ProviderSet)
	return nil, nil, nil
}
