package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/adapters/boltdb"
	"github.com/aretw0/mosaic/pkg/adapters/memory"
	"github.com/aretw0/mosaic/pkg/adapters/redis"
	"github.com/aretw0/mosaic/pkg/config"
	"github.com/aretw0/mosaic/pkg/dashboard"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/persistence/middleware"
	"github.com/aretw0/mosaic/pkg/ports"
	"github.com/aretw0/mosaic/pkg/registry"
	"github.com/aretw0/mosaic/pkg/schema"
	"github.com/spf13/cobra"
)

// loadDefinition resolves the dashboard selected by --file and --data.
func loadDefinition(cmd *cobra.Command) (domain.Definition, error) {
	def, _, err := loadDashboard(cmd)
	return def, err
}

// loadDashboard is loadDefinition plus the input schema of the file, if any.
func loadDashboard(cmd *cobra.Command) (domain.Definition, schema.Schema, error) {
	dataDir, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("file")

	data, err := dashboard.LoadData(dataDir)
	if err != nil {
		return domain.Definition{}, nil, fmt.Errorf("failed to load dataset from %s: %w", dataDir, err)
	}
	db := dashboard.New(data)

	if file == "" {
		def, err := db.Definition()
		return def, nil, err
	}
	reg := registry.NewRegistry()
	db.Register(reg)
	return config.LoadWithSchema(file, reg)
}

// newLogger builds the logger selected by --log-level and --log-file.
// The returned function releases the log file.
func newLogger(cmd *cobra.Command) (*slog.Logger, func() error, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}

	path, _ := cmd.Flags().GetString("log-file")
	if path == "" {
		return logging.New(level), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := logging.Fanout(
		logging.NewTextHandler(os.Stderr, level),
		logging.NewJSONHandler(f, slog.LevelDebug),
	)
	return logger, f.Close, nil
}

// addStoreFlags registers the snapshot store selection flags on cmd.
func addStoreFlags(cmd *cobra.Command, defaultKind string) {
	cmd.Flags().String("store", defaultKind, "Snapshot store: memory, bolt or redis")
	cmd.Flags().String("bolt-path", ".mosaic/sessions.db", "Database file for the bolt store")
	cmd.Flags().String("redis-addr", "localhost:6379", "Address of the redis store")
	cmd.Flags().String("redis-password", "", "Password of the redis store")
	cmd.Flags().Int("redis-db", 0, "Database index of the redis store")
	cmd.Flags().Duration("redis-ttl", 0, "Expiry of stored snapshots in redis (0 keeps them)")
	cmd.Flags().Bool("lock", false, "Coordinate sessions across replicas with a redis lock (redis store only)")
	cmd.Flags().String("encryption-key", os.Getenv("MOSAIC_ENCRYPTION_KEY"), "Base64 AES-256 key encrypting stored snapshots (default $MOSAIC_ENCRYPTION_KEY)")
	cmd.Flags().StringSlice("redact", nil, "Regular expressions of cell IDs and record fields masked before saving")
}

type storeHandle struct {
	store  ports.SnapshotStore
	locker ports.DistributedLocker
	close  func() error
}

// openStore opens the store selected by addStoreFlags, wrapped in the
// redaction and encryption middlewares when configured.
func openStore(cmd *cobra.Command) (*storeHandle, error) {
	h, err := openBackend(cmd)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if patterns, _ := cmd.Flags().GetStringSlice("redact"); len(patterns) > 0 {
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				_ = h.close()
				return nil, fmt.Errorf("invalid --redact pattern: %w", err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(patterns))
	}
	if encoded, _ := cmd.Flags().GetString("encryption-key"); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != 32 {
			_ = h.close()
			return nil, errors.New("encryption key must be 32 bytes, base64 encoded")
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	h.store = middleware.Chain(h.store, mws...)
	return h, nil
}

func openBackend(cmd *cobra.Command) (*storeHandle, error) {
	kind, _ := cmd.Flags().GetString("store")
	lock, _ := cmd.Flags().GetBool("lock")
	if lock && kind != "redis" {
		return nil, errors.New("--lock requires --store=redis")
	}

	switch kind {
	case "memory":
		return &storeHandle{store: memory.NewStore(), close: func() error { return nil }}, nil
	case "bolt":
		path, _ := cmd.Flags().GetString("bolt-path")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		store, err := boltdb.Open(path)
		if err != nil {
			return nil, err
		}
		return &storeHandle{store: store, close: store.Close}, nil
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		password, _ := cmd.Flags().GetString("redis-password")
		db, _ := cmd.Flags().GetInt("redis-db")
		ttl, _ := cmd.Flags().GetDuration("redis-ttl")
		store := redis.New(addr, password, db, redis.WithTTL(ttl))
		h := &storeHandle{store: store, close: store.Close}
		if lock {
			h.locker = redis.NewLocker(store.Client(), "mosaic:")
		}
		return h, nil
	}
	return nil, fmt.Errorf("unknown store %q. Supported: memory, bolt, redis", kind)
}
