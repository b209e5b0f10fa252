// Package app wires a workspace into a ready panel.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"panelkit/internal/blog"
	"panelkit/internal/config"
	"panelkit/internal/db"
	"panelkit/internal/i18n"
	"panelkit/internal/migrate"
	"panelkit/internal/panel"
)

// Open loads the workspace config, opens and migrates its database, and
// builds the panel over the blog resources. The caller closes the
// returned database.
func Open(ctx context.Context, workspace string, log zerolog.Logger) (panel.Panel, *sql.DB, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return panel.Panel{}, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: DatabaseWorkspace(workspace, cfg)})
	if err != nil {
		return panel.Panel{}, nil, fmt.Errorf("open db: %w", err)
	}
	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		conn.Close()
		return panel.Panel{}, nil, fmt.Errorf("migrate: %w", err)
	}
	for _, name := range applied {
		log.Info().Str("migration", name).Msg("applied migration")
	}
	reg, err := blog.Registry()
	if err != nil {
		conn.Close()
		return panel.Panel{}, nil, err
	}
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		conn.Close()
		return panel.Panel{}, nil, err
	}
	for _, loc := range cfg.Locales.Supported {
		if bundle.Match(loc).String() != loc {
			log.Warn().Str("locale", loc).Msg("no catalog for supported locale; falling back")
		}
	}
	return panel.New(conn, cfg, reg, bundle, log), conn, nil
}

// DatabaseWorkspace resolves the database workspace of cfg relative to the
// config's workspace.
func DatabaseWorkspace(workspace string, cfg *config.Config) string {
	dir := cfg.Database.Workspace
	if dir == "" || dir == "." {
		return workspace
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workspace, dir)
}
