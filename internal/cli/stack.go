package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/bpmnchat"
	"github.com/aretw0/bpmnchat/internal/config"
	"github.com/aretw0/bpmnchat/pkg/adapters/file"
	httpadapter "github.com/aretw0/bpmnchat/pkg/adapters/http"
	"github.com/aretw0/bpmnchat/pkg/adapters/memory"
	"github.com/aretw0/bpmnchat/pkg/adapters/postgres"
	"github.com/aretw0/bpmnchat/pkg/adapters/redis"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/observability"
	"github.com/aretw0/bpmnchat/pkg/persistence/middleware"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/reservation"
	"github.com/aretw0/bpmnchat/pkg/routing"
	"github.com/aretw0/bpmnchat/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// ErrNoProcess is returned when no diagram path was configured.
var ErrNoProcess = errors.New("no process diagram given (argument or BPMNCHAT_PROCESS)")

// Stack is the wired application shared by the commands.
type Stack struct {
	Engine    *bpmnchat.Engine
	Manager   *session.Manager
	Inventory ports.Inventory
	// Registry is nil unless metrics are enabled.
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func()
}

// Close releases the backend connections.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewStack loads the diagram and dialogue and connects the configured backends.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if cfg.Process == "" {
		return nil, ErrNoProcess
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := &Stack{Logger: logger}
	ok := false
	defer func() {
		if !ok {
			st.Close()
		}
	}()

	client, err := RedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client != nil {
		st.closers = append(st.closers, func() { _ = client.Close() })
	}

	inv, closeInv, err := NewInventory(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	st.Inventory = inv
	if closeInv != nil {
		st.closers = append(st.closers, closeInv)
	}

	opts := []bpmnchat.Option{
		bpmnchat.WithLogger(logger),
		bpmnchat.WithInventory(inv),
		bpmnchat.WithPacing(cfg.Pacing),
		bpmnchat.WithLifecycleHooks(observability.LogHooks(logger)),
	}
	if cfg.StrictFlows {
		opts = append(opts, bpmnchat.WithStrictFlows())
	}
	if cfg.Dialogue != "" {
		d, err := routing.LoadFile(cfg.Dialogue)
		if err != nil {
			return nil, err
		}
		opts = append(opts, bpmnchat.WithDialogue(d))
	}
	if cfg.Metrics {
		st.Registry = prometheus.NewRegistry()
		opts = append(opts, bpmnchat.WithLifecycleHooks(observability.NewMetrics(st.Registry).Hooks()))
	}

	eng, err := bpmnchat.Load(cfg.Process, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load process %s: %w", cfg.Process, err)
	}
	st.Engine = eng

	var (
		store       ports.SessionStore = memory.NewStore()
		managerOpts                    = []session.Option{session.WithLogger(logger)}
	)
	switch cfg.Store {
	case config.StoreFile:
		store = file.New(cfg.SessionDir)
	case config.StoreRedis:
		store = redis.NewStore(client, redis.WithTTL(cfg.SessionTTL), redis.WithPrefix(cfg.RedisPrefix))
		managerOpts = append(managerOpts, session.WithLocker(redis.NewLocker(client, redis.WithPrefix(cfg.RedisPrefix))))
	}
	if store, err = protect(store, cfg); err != nil {
		return nil, err
	}
	st.Manager = session.NewManager(eng.Runtime(), store, managerOpts...)

	ok = true
	return st, nil
}

// protect wraps the store with PII masking and encryption when configured.
func protect(store ports.SessionStore, cfg *config.Config) (ports.SessionStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		encCfg := middleware.EncryptionConfig{}
		var err error
		if encCfg.ActiveKey, err = middleware.DecodeKey(cfg.EncryptionKey); err != nil {
			return nil, fmt.Errorf("BPMNCHAT_ENCRYPTION_KEY: %w", err)
		}
		for _, k := range cfg.EncryptionFallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("BPMNCHAT_ENCRYPTION_FALLBACK_KEYS: %w", err)
			}
			encCfg.FallbackKeys = append(encCfg.FallbackKeys, key)
		}
		enc, err := middleware.NewEncryptionMiddleware(encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

// RedisClient connects to Redis when the store or inventory needs it.
// It returns a nil client otherwise.
func RedisClient(ctx context.Context, cfg *config.Config) (*backend.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	client := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// NewInventory builds the configured inventory backend. The memory backend
// starts with the demo rooms; the others hold whatever was seeded.
// The returned close function may be nil.
func NewInventory(ctx context.Context, cfg *config.Config, client *backend.Client) (ports.Inventory, func(), error) {
	switch cfg.Inventory {
	case config.InventoryRedis:
		if client == nil {
			return nil, nil, errors.New("redis inventory requires a redis client")
		}
		return redis.NewInventory(client, redis.WithPrefix(cfg.RedisPrefix)), nil, nil
	case config.InventoryPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewInventory(pool), pool.Close, nil
	case config.InventoryHTTP:
		return httpadapter.NewInventoryClient(cfg.InventoryURL), nil, nil
	default:
		return memory.NewInventory(reservation.DemoItems()...), nil, nil
	}
}

// Seeder is an inventory whose contents can be replaced.
type Seeder interface {
	Seed(ctx context.Context, items []domain.Item) error
}

// SchemaInitializer is an inventory that needs its storage created first.
type SchemaInitializer interface {
	EnsureSchema(ctx context.Context) error
}

// Seed replaces the inventory contents with items, creating the schema when needed.
func Seed(ctx context.Context, inv ports.Inventory, items []domain.Item) error {
	if si, ok := inv.(SchemaInitializer); ok {
		if err := si.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	seeder, ok := inv.(Seeder)
	if !ok {
		return fmt.Errorf("inventory %T cannot be seeded", inv)
	}
	return seeder.Seed(ctx, items)
}
