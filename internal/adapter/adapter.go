package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/objectfs/jailstore/internal/blobfs"
	"github.com/objectfs/jailstore/internal/circuit"
	"github.com/objectfs/jailstore/internal/config"
	"github.com/objectfs/jailstore/internal/hostfs"
	"github.com/objectfs/jailstore/internal/memfs"
	"github.com/objectfs/jailstore/internal/metrics"
	"github.com/objectfs/jailstore/internal/storage"
	"github.com/objectfs/jailstore/internal/storage/badger"
	"github.com/objectfs/jailstore/internal/storage/memory"
	"github.com/objectfs/jailstore/internal/storage/s3"
	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/paths"
	"github.com/objectfs/jailstore/pkg/retry"
	"github.com/objectfs/jailstore/pkg/store"
	"github.com/objectfs/jailstore/pkg/types"
	"github.com/objectfs/jailstore/pkg/utils"
)

const component = "adapter"

// Supported URI schemes.
const (
	SchemeMemory = "memory"
	SchemeFile   = "file"
	SchemeBadger = "badger"
	SchemeS3     = "s3"
)

// Location is a parsed store URI.
type Location struct {
	Scheme string
	// Name is the memory engine name or the slot of a blob store. Empty
	// slots fall back to the configured default.
	Name string
	// Bucket is set for s3 locations.
	Bucket string
	// HostPath is the host directory of a file location.
	HostPath string
}

var (
	sharedMu      sync.Mutex
	sharedEngines = make(map[string]*memfs.Engine)
	sharedSlots   = make(map[string]*memory.Store)
)

// Adapter owns a configured backend and everything it holds open.
type Adapter struct {
	location  Location
	config    *config.Configuration
	backend   types.Backend
	store     *store.Store
	slots     storage.SlotStore
	collector *metrics.Collector
	logger    *slog.Logger
}

// ParseURI validates uri and splits it into a Location.
func ParseURI(uri string) (Location, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return Location{}, unsupported(uri, "failed to parse URI").WithCause(err)
	}

	switch parsed.Scheme {
	case SchemeMemory:
		name := parsed.Host + strings.TrimSuffix(parsed.Path, "/")
		if name == "" {
			name = "default"
		}
		return Location{Scheme: SchemeMemory, Name: name}, nil
	case SchemeFile:
		if parsed.Host != "" && parsed.Host != "localhost" {
			return Location{}, unsupported(uri, "file URI must not name a remote host")
		}
		if !paths.IsAbs(parsed.Path) {
			return Location{}, unsupported(uri, "file URI must carry an absolute path")
		}
		return Location{Scheme: SchemeFile, HostPath: paths.Resolve(paths.Root, parsed.Path)}, nil
	case SchemeBadger:
		return Location{Scheme: SchemeBadger, Name: parsed.Host + strings.TrimSuffix(parsed.Path, "/")}, nil
	case SchemeS3:
		if parsed.Host == "" {
			return Location{}, unsupported(uri, "S3 URI must include bucket name")
		}
		return Location{
			Scheme: SchemeS3,
			Bucket: parsed.Host,
			Name:   strings.Trim(parsed.Path, "/"),
		}, nil
	default:
		return Location{}, unsupported(uri, fmt.Sprintf("unsupported storage scheme: %q", parsed.Scheme))
	}
}

// Open builds the backend named by cfg.Store.URI, makes sure the jail
// directory exists and wraps the result in a Store.
func Open(ctx context.Context, cfg *config.Configuration, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	location, err := ParseURI(cfg.Store.URI)
	if err != nil {
		return nil, err
	}
	if cfg.Store.ReadOnly && location.Scheme != SchemeFile {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "read_only is only supported for file:// stores").
			WithComponent(component).
			WithOperation("open").
			WithContext("field", "store.read_only").
			WithContext("uri", cfg.Store.URI)
	}

	a := &Adapter{
		location: location,
		config:   cfg,
		logger:   logger.With("component", component),
	}

	if err := a.openBackend(ctx); err != nil {
		a.Close()
		return nil, err
	}

	jail := cfg.Store.Jail
	if location.Scheme == SchemeFile {
		jail = paths.Join(location.HostPath, cfg.Store.Jail)
	}
	sc, err := types.NewStorageContext(cfg.Store.URI, jail, cfg.Store.Pwd)
	if err != nil {
		a.Close()
		return nil, err
	}

	if !cfg.Store.ReadOnly {
		if err := a.backend.Mkdir(ctx, sc, sc.Jail, types.MkdirOptions{Recursive: true}); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Monitoring.Metrics.Enabled {
		collector, err := metrics.NewCollector(&metrics.Config{
			Enabled:   true,
			Port:      cfg.Monitoring.Metrics.Port,
			Path:      cfg.Monitoring.Metrics.Path,
			Namespace: cfg.Monitoring.Metrics.Namespace,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create metrics collector: %w", err)
		}
		a.collector = collector
		a.backend = metrics.Instrument(a.backend, collector)
	}

	a.store = store.New(a.backend, sc)
	a.logger.Debug("store opened", "uri", cfg.Store.URI, "jail", sc.Jail, "pwd", sc.Pwd)
	return a, nil
}

// Location returns the parsed store URI.
func (a *Adapter) Location() Location {
	return a.location
}

// Store returns the jailed store over the configured backend.
func (a *Adapter) Store() *store.Store {
	return a.store
}

// Collector returns the metrics collector, nil when metrics are disabled.
func (a *Adapter) Collector() *metrics.Collector {
	return a.collector
}

// StartMetrics serves the metrics endpoint when metrics are enabled.
func (a *Adapter) StartMetrics(ctx context.Context) error {
	if a.collector == nil {
		return nil
	}
	return a.collector.Start(ctx)
}

// Close stops the metrics server and closes slot stores owned by the
// adapter. Shared memory engines and slot stores stay alive.
func (a *Adapter) Close() error {
	var firstErr error
	if a.collector != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.collector.Stop(ctx); err != nil {
			firstErr = err
		}
	}
	if a.slots != nil {
		if err := a.slots.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.slots = nil
	}
	return firstErr
}

func (a *Adapter) openBackend(ctx context.Context) error {
	cfg := a.config

	switch a.location.Scheme {
	case SchemeMemory:
		if cfg.Slots.QuotaBytes > 0 {
			return a.openBlob(ctx, sharedSlotStore(a.location.Name, cfg.Slots.QuotaBytes, a.logger), false)
		}
		a.backend = sharedEngine(a.location.Name, a.logger)
		return nil

	case SchemeFile:
		var opts []hostfs.Option
		opts = append(opts, hostfs.WithLogger(a.logger))
		if cfg.Store.ReadOnly {
			opts = append(opts, hostfs.WithReadOnly())
		} else if err := os.MkdirAll(a.location.HostPath, hostfs.DefaultDirMode); err != nil {
			return errors.NewError(errors.ErrCodePathUnavailable, "failed to create host jail").
				WithComponent(component).
				WithOperation("open").
				WithContext("path", a.location.HostPath).
				WithCause(err)
		}
		a.backend = hostfs.New(opts...)
		return nil

	case SchemeBadger:
		slots, err := badger.New(badger.Config{
			Directory:    cfg.Slots.Badger.Directory,
			InMemory:     cfg.Slots.Badger.InMemory,
			MaxValueSize: cfg.Slots.QuotaBytes,
			Logger:       a.logger,
		})
		if err != nil {
			return errors.NewError(errors.ErrCodeUnknown, "failed to open badger slot store").
				WithComponent(component).
				WithOperation("open").
				WithContext("directory", cfg.Slots.Badger.Directory).
				WithCause(err)
		}
		return a.openBlob(ctx, slots, true)

	case SchemeS3:
		s3cfg := s3.Config{
			Bucket:             a.location.Bucket,
			Prefix:             cfg.Slots.S3.Prefix,
			Region:             cfg.Slots.S3.Region,
			Endpoint:           cfg.Slots.S3.Endpoint,
			ForcePathStyle:     cfg.Slots.S3.ForcePathStyle,
			MaxRetries:         cfg.Slots.S3.MaxRetries,
			RequestTimeout:     cfg.Slots.S3.RequestTimeout,
			EnableAcceleration: cfg.Slots.S3.EnableAcceleration,
			StorageClass:       cfg.Slots.S3.StorageClass,
			MaxObjectSize:      cfg.Slots.S3.MaxObjectSize,
		}
		if s3cfg.MaxObjectSize == 0 {
			s3cfg.MaxObjectSize = cfg.Slots.QuotaBytes
		}

		var slots *s3.Store
		err := a.retryPolicy().Do(ctx, func(ctx context.Context) error {
			var err error
			slots, err = s3.New(ctx, s3cfg, a.logger)
			if err != nil {
				return errors.NewError(errors.ErrCodeUnknown, "failed to open S3 slot store").
					WithComponent(component).
					WithOperation("open").
					WithContext("bucket", s3cfg.Bucket).
					WithCause(err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if cfg.Slots.Breaker.Enabled {
			breaker := circuit.NewBreaker("s3://"+s3cfg.Bucket, circuit.Config{
				FailureThreshold: cfg.Slots.Breaker.FailureThreshold,
				Timeout:          cfg.Slots.Breaker.Timeout,
				OnStateChange: func(name string, from, to circuit.State) {
					a.logger.Warn("slot store breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
				},
			})
			return a.openBlob(ctx, circuit.Guard(slots, breaker), true)
		}
		return a.openBlob(ctx, slots, true)
	}

	return unsupported(a.config.Store.URI, "no backend for scheme "+a.location.Scheme)
}

// openBlob loads the configured slot from slots. owned stores are closed
// by Close.
func (a *Adapter) openBlob(ctx context.Context, slots storage.SlotStore, owned bool) error {
	cfg := a.config

	if cfg.Slots.Compression.Enabled {
		compressed, err := storage.NewCompressed(slots, cfg.Slots.Compression.Level)
		if err != nil {
			if owned {
				slots.Close()
			}
			return errors.NewError(errors.ErrCodeUnknown, "failed to initialize slot compression").
				WithComponent(component).
				WithOperation("open").
				WithCause(err)
		}
		if owned {
			slots = compressed
		} else {
			slots = uncloseable{compressed}
		}
	}
	if owned {
		a.slots = slots
	}

	slot := a.location.Name
	if slot == "" || a.location.Scheme == SchemeMemory {
		slot = cfg.Slots.Slot
	}

	var backend *blobfs.Adapter
	err := a.retryPolicy().Do(ctx, func(ctx context.Context) error {
		var err error
		backend, err = blobfs.Open(ctx, slots, slot, blobfs.WithLogger(a.logger))
		return err
	})
	if err != nil {
		return err
	}

	a.logger.Debug("slot loaded", "scheme", a.location.Scheme, "slot", slot, "nodes", backend.Engine().Len())
	a.backend = backend
	return nil
}

func (a *Adapter) retryPolicy() retry.Policy {
	cfg := a.config.Retry
	return retry.Policy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Jitter:       true,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			a.logger.Warn("retrying slot store", "attempt", attempt, "delay", delay, "error", err)
		},
	}
}

func sharedEngine(name string, logger *slog.Logger) *memfs.Engine {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	engine, ok := sharedEngines[name]
	if !ok {
		engine = memfs.New(memfs.WithLogger(logger))
		sharedEngines[name] = engine
	}
	return engine
}

func sharedSlotStore(name string, quota int64, logger *slog.Logger) storage.SlotStore {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	slots, ok := sharedSlots[name]
	if !ok {
		slots = memory.New(quota)
		sharedSlots[name] = slots
		logger.Debug("memory slot store created", "name", name, "quota", utils.FormatBytes(quota))
	}
	return uncloseable{slots}
}

// uncloseable keeps process-wide slot stores open past an adapter's Close.
type uncloseable struct {
	storage.SlotStore
}

func (uncloseable) Close() error {
	return nil
}

func unsupported(uri, message string) *errors.StoreError {
	return errors.NewError(errors.ErrCodeUnsupportedURI, message).
		WithComponent(component).
		WithOperation("parse_uri").
		WithContext("uri", uri)
}
