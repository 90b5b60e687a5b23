package handler

import (
	"github.com/cucfkpoesie/CrystalMed/internal/app/presence"
	"github.com/cucfkpoesie/CrystalMed/internal/app/session"
	"github.com/cucfkpoesie/CrystalMed/internal/configs"
)

// AppDeps bundles the shared dependencies every handler needs.
type AppDeps struct {
	Hub      *session.Hub
	Registry *presence.Registry
	Relay    *presence.Relay
	Config   *configs.AppConfig
}
