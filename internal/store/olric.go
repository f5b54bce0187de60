package store

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olric-data/olric"
	olricconfig "github.com/olric-data/olric/config"
	"github.com/rs/zerolog"
)

// parseBindAddr parses a bind address string that may contain host:port or just host.
// Returns the host and port (0 if not specified).
func parseBindAddr(addr string) (h string, p int) {
	var err error
	h, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port specified, return address as-is
		return addr, 0
	}
	p, err = strconv.Atoi(portStr)
	if err != nil {
		return h, 0
	}
	return h, p
}

// olricStore implements Store using Olric as the backend.
// It provides the shared, TTL-backed representation of all ephemeral auth
// state so that any keygate instance can redeem a token or validate a
// session issued by another instance.
//
// Supports two modes:
//   - Embedded mode: runs a local Olric node (clusterable via peers)
//   - Cluster mode: connects to an existing Olric cluster
type olricStore struct {
	db     *olric.Olric    // Olric instance (embedded mode only, nil for cluster mode)
	client olric.Client    // Client interface (works for both modes)
	dmap   olric.DMap      // Distributed map handle
	log    *zerolog.Logger // Logger for store operations
	name   string          // DMap name for reference
	mu     sync.RWMutex
	closed atomic.Bool
}

// Ensure olricStore implements the required interfaces.
var (
	_ Store  = (*olricStore)(nil)
	_ Pinger = (*olricStore)(nil)
)

// newOlricStore creates an Olric-backed store for the given mode.
func newOlricStore(ctx context.Context, mode Mode, cfg *OlricConfig) (*olricStore, error) {
	olricLog := logger().With().Str("backend", "olric").Logger()
	dmapName := cfg.GetDMapName()

	if mode == ModeEmbedded {
		olricLog.Debug().Str("mode", "embedded").Msg("olric: starting embedded node")
		return newEmbeddedOlricStore(ctx, cfg, dmapName, &olricLog)
	}
	olricLog.Debug().Str("mode", "cluster").Strs("addresses", cfg.Addresses).Msg("olric: connecting to cluster")
	return newClusterOlricStore(ctx, cfg, dmapName, &olricLog)
}

// newEmbeddedOlricStore starts an embedded Olric node.
func newEmbeddedOlricStore(
	ctx context.Context, cfg *OlricConfig, dmapName string, lg *zerolog.Logger,
) (*olricStore, error) {
	c := olricconfig.New("local")

	bindAddr, bindPort := parseBindAddr(cfg.BindAddr)
	c.BindAddr = bindAddr
	if bindPort > 0 {
		c.BindPort = bindPort
	}

	if len(cfg.Peers) > 0 {
		c.Peers = cfg.Peers
	}

	// Suppress verbose Olric logging; zerolog carries our own signal.
	c.LogOutput = io.Discard
	c.Logger = log.New(io.Discard, "", 0)

	// Channel to signal when Olric is ready.
	// This must be set BEFORE calling olric.New().
	ready := make(chan struct{})
	c.Started = func() {
		close(ready)
	}

	db, err := olric.New(c)
	if err != nil {
		lg.Error().Err(err).Msg("olric: failed to create embedded instance")
		return nil, err
	}

	startErr := make(chan error, 1)
	go func() {
		if err := db.Start(); err != nil {
			startErr <- err
		}
	}()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	select {
	case <-ready:
		lg.Debug().Msg("olric: embedded node ready")
	case err := <-startErr:
		lg.Error().Err(err).Msg("olric: embedded node failed to start")
		return nil, err
	case <-startupCtx.Done():
		// Timeout - the node is still starting but should be usable soon.
		lg.Debug().Msg("olric: embedded node startup timeout, proceeding")
		time.Sleep(100 * time.Millisecond)
	}

	client := db.NewEmbeddedClient()

	dm, err := client.NewDMap(dmapName)
	if err != nil {
		lg.Error().Err(err).Str("dmap", dmapName).Msg("olric: failed to create dmap")
		if shutdownErr := db.Shutdown(context.Background()); shutdownErr != nil {
			lg.Error().Err(shutdownErr).Msg("olric: failed to shutdown after dmap creation error")
		}
		return nil, err
	}

	lg.Info().
		Str("bind_addr", bindAddr).
		Int("bind_port", bindPort).
		Str("dmap", dmapName).
		Int("peers", len(cfg.Peers)).
		Msg("olric embedded store created")

	return &olricStore{
		client: client,
		dmap:   dm,
		db:     db,
		name:   dmapName,
		log:    lg,
	}, nil
}

// newClusterOlricStore connects to an external Olric cluster.
func newClusterOlricStore(
	ctx context.Context, cfg *OlricConfig, dmapName string, lg *zerolog.Logger,
) (*olricStore, error) {
	if len(cfg.Addresses) == 0 {
		lg.Error().Msg("olric: addresses required for cluster mode")
		return nil, errors.New("store: olric addresses required for cluster mode")
	}

	client, err := olric.NewClusterClient(cfg.Addresses)
	if err != nil {
		lg.Error().Err(err).Strs("addresses", cfg.Addresses).Msg("olric: failed to connect to cluster")
		return nil, err
	}

	dm, err := client.NewDMap(dmapName)
	if err != nil {
		lg.Error().Err(err).Str("dmap", dmapName).Msg("olric: failed to create dmap")
		if closeErr := client.Close(ctx); closeErr != nil {
			lg.Error().Err(closeErr).Msg("olric: failed to close client after dmap creation error")
		}
		return nil, err
	}

	lg.Info().
		Strs("addresses", cfg.Addresses).
		Str("dmap", dmapName).
		Msg("olric cluster store created")

	return &olricStore{
		client: client,
		dmap:   dm,
		db:     nil, // nil for cluster mode
		name:   dmapName,
		log:    lg,
	}, nil
}

// guard returns ErrClosed or the context error if the store is unusable.
// Callers must hold at least a read lock when touching the dmap afterward.
func (o *olricStore) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (o *olricStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := o.guard(ctx); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return nil, ErrClosed
	}

	resp, err := o.dmap.Get(ctx, key)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			o.log.Debug().Str("key", key).Bool("hit", false).Msg("store get")
			return nil, ErrNotFound
		}
		o.log.Debug().Str("key", key).Err(err).Msg("store get error")
		return nil, err
	}

	value, err := resp.Byte()
	if err != nil {
		o.log.Debug().Str("key", key).Err(err).Msg("store get: failed to decode value")
		return nil, err
	}

	o.log.Debug().Str("key", key).Bool("hit", true).Int("size", len(value)).Msg("store get")

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (o *olricStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := o.guard(ctx); err != nil {
		return err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	err := o.dmap.Put(ctx, key, valueCopy, olric.EX(ttl))
	if err != nil {
		o.log.Debug().Str("key", key).Int("size", len(value)).Dur("ttl", ttl).Err(err).Msg("store set error")
		return err
	}

	o.log.Debug().Str("key", key).Int("size", len(value)).Dur("ttl", ttl).Msg("store set")
	return nil
}

func (o *olricStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := o.guard(ctx); err != nil {
		return false, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return false, ErrClosed
	}

	// Olric reports how many keys were actually removed, which makes this
	// a safe single-use consumption primitive under concurrent attempts.
	count, err := o.dmap.Delete(ctx, key)
	if err != nil && !errors.Is(err, olric.ErrKeyNotFound) {
		o.log.Debug().Str("key", key).Err(err).Msg("store delete error")
		return false, err
	}

	removed := count > 0
	o.log.Debug().Str("key", key).Bool("removed", removed).Msg("store delete")
	return removed, nil
}

func (o *olricStore) GetDelete(ctx context.Context, key string) ([]byte, error) {
	if err := o.guard(ctx); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return nil, ErrClosed
	}

	resp, err := o.dmap.Get(ctx, key)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			o.log.Debug().Str("key", key).Bool("hit", false).Msg("store getdelete")
			return nil, ErrNotFound
		}
		return nil, err
	}

	value, err := resp.Byte()
	if err != nil {
		return nil, err
	}

	// The delete count decides the race: only the caller that actually
	// removed the key may use the value. Everyone else observes not-found,
	// so a token can never be redeemed twice.
	count, err := o.dmap.Delete(ctx, key)
	if err != nil && !errors.Is(err, olric.ErrKeyNotFound) {
		return nil, err
	}
	if count == 0 {
		o.log.Debug().Str("key", key).Bool("hit", false).Msg("store getdelete: lost consumption race")
		return nil, ErrNotFound
	}

	o.log.Debug().Str("key", key).Bool("hit", true).Msg("store getdelete")
	return value, nil
}

func (o *olricStore) Incr(ctx context.Context, key string, delta int) (int64, error) {
	if err := o.guard(ctx); err != nil {
		return 0, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return 0, ErrClosed
	}

	count, err := o.dmap.Incr(ctx, key, delta)
	if err != nil {
		o.log.Debug().Str("key", key).Err(err).Msg("store incr error")
		return 0, err
	}

	o.log.Debug().Str("key", key).Int("count", count).Msg("store incr")
	return int64(count), nil
}

func (o *olricStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := o.guard(ctx); err != nil {
		return err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return ErrClosed
	}

	err := o.dmap.Expire(ctx, key, ttl)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			return ErrNotFound
		}
		o.log.Debug().Str("key", key).Err(err).Msg("store expire error")
		return err
	}

	o.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("store expire")
	return nil
}

func (o *olricStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := o.guard(ctx); err != nil {
		return 0, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return 0, ErrClosed
	}

	resp, err := o.dmap.Get(ctx, key)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	// Olric reports TTL as the absolute expiry in Unix milliseconds,
	// zero when the entry has no expiry.
	expiry := resp.TTL()
	if expiry == 0 {
		return 0, nil
	}

	remaining := time.Until(time.UnixMilli(expiry))
	if remaining < 0 {
		return 0, ErrNotFound
	}
	return remaining, nil
}

// Ping verifies the store connection is alive.
// For embedded mode, this succeeds if the node is up.
// For cluster mode, this validates cluster connectivity.
func (o *olricStore) Ping(ctx context.Context) error {
	if err := o.guard(ctx); err != nil {
		return err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return ErrClosed
	}

	// ErrKeyNotFound is the expected answer from a healthy backend.
	_, err := o.dmap.Get(ctx, "__ping_healthcheck__")
	if errors.Is(err, olric.ErrKeyNotFound) {
		o.log.Debug().Msg("store ping: healthy")
		return nil
	}
	if err != nil {
		o.log.Debug().Err(err).Msg("store ping: unhealthy")
		return err
	}

	o.log.Debug().Msg("store ping: healthy")
	return nil
}

// Close releases resources associated with the store.
// After Close is called, all operations return ErrClosed. Idempotent.
func (o *olricStore) Close() error {
	if o.closed.Load() {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return nil
	}

	o.closed.Store(true)

	ctx := context.Background()

	if o.dmap != nil {
		if dmapErr := o.dmap.Close(ctx); dmapErr != nil {
			o.log.Debug().Err(dmapErr).Msg("olric: dmap close error during shutdown")
		}
	}

	var err error
	if o.db != nil {
		// Embedded mode: shutdown the Olric node.
		err = o.db.Shutdown(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("olric: embedded node shutdown error")
		} else {
			o.log.Info().Msg("olric embedded store closed")
		}
		return err
	}

	if o.client != nil {
		err = o.client.Close(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("olric: client disconnect error")
		} else {
			o.log.Info().Msg("olric cluster store closed")
		}
		return err
	}

	return nil
}
