// Package app wires the document registry, mistake store, and review
// scheduler into the single application service behind the HTTP surface.
package app

import (
	"fmt"
	"sync"
	"time"

	"mistakebook/internal/review"
	"mistakebook/pkg/kv"
	"mistakebook/pkg/storage"
	"mistakebook/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	// Exactly one persistence backend is picked, in this order: an injected
	// Store, DatabaseURL (Postgres), RedisAddr (KV blobs in Redis), DataDir
	// (KV blobs on disk).
	Store       store.Store
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	DataDir       string

	// Objects overrides the MinIO settings when set (tests).
	Objects        storage.ObjectStore
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// App is the core application service. All mutations run behind one mutex:
// the scheduler transition is a read-modify-write over the full prior state,
// and expected load is one interactive user, so a single serialization point
// is enough.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	presignExpiry time.Duration
	now           func() time.Time

	mu      sync.Mutex
	session *review.Session
}

// New constructs the application service and loads persisted state.
func New(cfg Config) (*App, error) {
	objects := cfg.Objects
	if objects == nil {
		if cfg.MinioEndpoint == "" {
			return nil, fmt.Errorf("object storage required (minio endpoint)")
		}
		var err error
		objects, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	dataStore := cfg.Store
	if dataStore == nil {
		switch {
		case cfg.DatabaseURL != "":
			var err error
			dataStore, err = store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
		case cfg.RedisAddr != "":
			blobs, err := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, "mistakebook")
			if err != nil {
				return nil, fmt.Errorf("init redis blobs: %w", err)
			}
			dataStore = store.NewKVStore(blobs)
		case cfg.DataDir != "":
			blobs, err := kv.NewFileStore(cfg.DataDir)
			if err != nil {
				return nil, fmt.Errorf("init file blobs: %w", err)
			}
			dataStore = store.NewKVStore(blobs)
		default:
			return nil, fmt.Errorf("persistence required (databaseURL, redisAddr, or dataDir)")
		}
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &App{
		store:         dataStore,
		objects:       objects,
		presignExpiry: 15 * time.Minute,
		now:           now,
	}, nil
}
