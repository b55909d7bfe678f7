// Package isaac wires the versioning core into one runtime context.
//
// A Runtime owns the identifier service, the STAMP registry, the path
// graph, the chronicle environment and the data store. It is built once
// from a config.Config, passed to whatever needs it, and torn down with
// Close. There is no process-wide state.
package isaac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/isaac/internal/chronicle"
	"github.com/roach88/isaac/internal/config"
	"github.com/roach88/isaac/internal/identifier"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
	"github.com/roach88/isaac/internal/stamp"
	"github.com/roach88/isaac/internal/store"
)

// Runtime is the runtime context of the versioning core.
//
// Thread-safety: all methods are safe for concurrent use.
type Runtime struct {
	cfg     *config.Config
	ids     *identifier.Service
	stamps  *stamp.Registry
	paths   *stamp.Paths
	env     *chronicle.Env
	store   store.DataStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	pathNids map[string]ir.Nid
	author   ir.Nid
	module   ir.Nid
	path     ir.Nid

	loads     singleflight.Group
	closeOnce sync.Once
	closeErr  error
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	store      store.DataStore
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the runtime's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithStore uses s instead of opening the configured backend. The runtime
// closes s on Close.
func WithStore(s store.DataStore) Option {
	return func(o *options) { o.store = s }
}

// New builds a runtime from cfg. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	m := metrics.New(o.registerer)
	r := &Runtime{
		cfg:      cfg,
		ids:      identifier.New(),
		stamps:   stamp.NewRegistry(m),
		paths:    stamp.NewPaths(),
		logger:   o.logger,
		metrics:  m,
		pathNids: make(map[string]ir.Nid, len(cfg.Paths)),
	}
	r.env = chronicle.NewEnv(r.stamps, r.paths, r.ids, r.logger, m)

	if err := r.bootstrapPaths(); err != nil {
		return nil, err
	}
	var err error
	if r.author, err = r.ids.AssignNid(config.NameUUID(cfg.Defaults.Author)); err != nil {
		return nil, fmt.Errorf("assign default author: %w", err)
	}
	if r.module, err = r.ids.AssignNid(config.NameUUID(cfg.Defaults.Module)); err != nil {
		return nil, fmt.Errorf("assign default module: %w", err)
	}
	r.path = r.pathNids[cfg.Defaults.Path]

	r.store = o.store
	if r.store == nil {
		if r.store, err = openStore(cfg.Store, m, r.logger); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("runtime ready",
		"store", cfg.Store.Backend,
		"paths", len(r.pathNids),
		"default_path", cfg.Defaults.Path)
	return r, nil
}

// bootstrapPaths assigns nids to the configured paths and adds them to
// the path graph in file order.
func (r *Runtime) bootstrapPaths() error {
	for _, p := range r.cfg.Paths {
		nid, err := r.ids.AssignNid(p.PathUUID())
		if err != nil {
			return fmt.Errorf("assign path %q: %w", p.Name, err)
		}
		origins := make([]stamp.Origin, 0, len(p.Origins))
		for _, o := range p.Origins {
			t := ir.TimeMax
			if o.Time != nil {
				t = *o.Time
			}
			origins = append(origins, stamp.Origin{Path: r.pathNids[o.Path], Time: t})
		}
		if err := r.paths.AddPath(nid, origins...); err != nil {
			return fmt.Errorf("add path %q: %w", p.Name, err)
		}
		r.pathNids[p.Name] = nid
	}
	return nil
}

func openStore(cfg config.StoreConfig, m *metrics.Metrics, logger *slog.Logger) (store.DataStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := store.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		s.SetObservers(m, logger)
		return s, nil
	case config.BackendBadger:
		compression, err := store.ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		bc := store.DefaultBadgerConfig(cfg.Path)
		bc.SyncWrites = cfg.SyncWrites
		bc.Compression = compression
		s, err := store.OpenBadger(bc, m, logger)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil
	default:
		return store.NewMemory(m, logger), nil
	}
}

// Close tears the runtime down. Further calls return the first result.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.store.Close()
	})
	return r.closeErr
}

func (r *Runtime) Env() *chronicle.Env               { return r.env }
func (r *Runtime) Identifiers() *identifier.Service { return r.ids }
func (r *Runtime) Stamps() *stamp.Registry          { return r.stamps }
func (r *Runtime) Paths() *stamp.Paths              { return r.paths }
func (r *Runtime) Store() store.DataStore           { return r.store }
func (r *Runtime) Metrics() *metrics.Metrics        { return r.metrics }
func (r *Runtime) Logger() *slog.Logger             { return r.logger }

// PathNid returns the nid of a configured path.
func (r *Runtime) PathNid(name string) (ir.Nid, bool) {
	nid, ok := r.pathNids[name]
	return nid, ok
}

// PathName returns the configured name of a path nid.
func (r *Runtime) PathName(nid ir.Nid) (string, bool) {
	for name, n := range r.pathNids {
		if n == nid {
			return name, true
		}
	}
	return "", false
}

// Stamp returns a stamp with the default author, module and path.
// Pass ir.TimeMax for an uncommitted stamp.
func (r *Runtime) Stamp(status ir.Status, time int64) ir.Stamp {
	return ir.Stamp{Status: status, Time: time, Author: r.author, Module: r.module, Path: r.path}
}

// Coordinate returns a coordinate on the named path.
func (r *Runtime) Coordinate(path string, time int64, precedence ir.Precedence, allowed ...ir.Status) (ir.StampCoordinate, error) {
	nid, ok := r.pathNids[path]
	if !ok {
		return ir.StampCoordinate{}, ir.Errorf(ir.ErrCodeUnknownIdentifier, "unknown path %q", path)
	}
	return ir.StampCoordinate{Path: nid, Time: time, AllowedStatus: allowed, Precedence: precedence}, nil
}

// NewConcept creates an empty concept chronicle. The nid is assigned from
// the UUIDs; reusing known UUIDs yields the existing nid.
func (r *Runtime) NewConcept(assemblage ir.Nid, primordial uuid.UUID, additional ...uuid.UUID) (*chronicle.Chronicle, error) {
	return r.newChronicle(chronicle.Header{
		VersionType: ir.VersionTypeConcept,
		Assemblage:  assemblage,
		Primordial:  primordial,
		Additional:  additional,
	})
}

// NewSemantic creates an empty semantic chronicle referencing component.
func (r *Runtime) NewSemantic(vt ir.VersionType, assemblage, component ir.Nid, primordial uuid.UUID, additional ...uuid.UUID) (*chronicle.Chronicle, error) {
	if vt.ObjectType() != ir.ObjectTypeSemantic {
		return nil, fmt.Errorf("version type %s is not a semantic type", vt)
	}
	return r.newChronicle(chronicle.Header{
		VersionType:         vt,
		Assemblage:          assemblage,
		ReferencedComponent: component,
		Primordial:          primordial,
		Additional:          additional,
	})
}

func (r *Runtime) newChronicle(h chronicle.Header) (*chronicle.Chronicle, error) {
	nid, err := r.ids.AssignNid(append([]uuid.UUID{h.Primordial}, h.Additional...)...)
	if err != nil {
		return nil, fmt.Errorf("assign chronicle nid: %w", err)
	}
	h.Nid = nid
	return chronicle.New(r.env, h)
}

// storedChronicle is one fetch of a stored chronicle. It is shared by
// concurrent loads and never modified.
type storedChronicle struct {
	seq  int32
	data []byte
}

// Load reads the stored chronicle of nid. found is false when nothing is
// stored. Concurrent loads of one nid share a single fetch, but every
// caller decodes its own chronicle.
func (r *Runtime) Load(ctx context.Context, nid ir.Nid) (c *chronicle.Chronicle, found bool, err error) {
	v, err, _ := r.loads.Do(strconv.Itoa(int(nid)), func() (any, error) {
		// The write sequence is read before the data. A write landing in
		// between leaves the sequence behind the data, which the next put
		// resolves by merging.
		seq, err := r.store.WriteSequence(ctx, nid)
		if err != nil {
			return nil, err
		}
		data, found, err := r.store.GetChronicleVersionData(ctx, nid)
		if err != nil || !found {
			return nil, err
		}
		return &storedChronicle{seq: seq, data: data}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("load chronicle %d: %w", nid, err)
	}
	if v == nil {
		return nil, false, nil
	}
	stored := v.(*storedChronicle)
	c, err = chronicle.Read(r.env, stored.data)
	if err != nil {
		return nil, false, fmt.Errorf("load chronicle %d: %w", nid, err)
	}
	c.SetWriteSequence(stored.seq)
	return c, true, nil
}

// Write persists c. Concurrent changes to the stored copy are merged in.
func (r *Runtime) Write(ctx context.Context, c *chronicle.Chronicle) error {
	return r.store.PutChronicleData(ctx, c)
}

// Commit commits every uncommitted version of c at time and writes c.
// It returns the number of versions committed.
func (r *Runtime) Commit(ctx context.Context, c *chronicle.Chronicle, time int64) (int, error) {
	n, err := c.CommitPending(time)
	if err != nil {
		return 0, err
	}
	if err := r.Write(ctx, c); err != nil {
		return n, err
	}
	r.logger.Debug("committed versions", "nid", c.Nid(), "count", n, "time", time)
	return n, nil
}

// Import reads EXTERNAL-mode bytes and writes the chronicle. A chronicle
// that is already stored is merged with the imported versions.
func (r *Runtime) Import(ctx context.Context, data []byte) (*chronicle.Chronicle, error) {
	c, err := chronicle.Read(r.env, data)
	if err != nil {
		return nil, fmt.Errorf("import chronicle: %w", err)
	}
	if err := r.Write(ctx, c); err != nil {
		return nil, fmt.Errorf("import chronicle: %w", err)
	}
	return c, nil
}

// Export returns the EXTERNAL-mode bytes of the stored chronicle of nid.
func (r *Runtime) Export(ctx context.Context, nid ir.Nid) ([]byte, error) {
	c, found, err := r.Load(ctx, nid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ir.Errorf(ir.ErrCodeUnknownIdentifier, "no stored chronicle").WithNid(nid)
	}
	return c.SerializeExternal()
}
