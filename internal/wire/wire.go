//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"github.com/sevigo/hub2lab/internal/app"
	"github.com/sevigo/hub2lab/internal/config"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(cfg *config.Config) (*app.App, error) {
	wire.Build(AppSet)
	return &app.App{}, nil
}
