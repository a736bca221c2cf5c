package export

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/config"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/memory"
	"github.com/wippyai/ffi-bridge/object"
)

// Library is one instance of the native library: its linear memory, heap,
// live objects, and the table of exported symbols.
type Library struct {
	mem     ffibridge.Memory
	arena   *memory.Arena
	store   *object.Store
	log     *zap.Logger
	funcs   map[string]*Func
	memMod  api.Module
	hostMod api.Module
	order   []string
	cfg     config.Config
	id      uuid.UUID
	mu      sync.Mutex
	closed  bool
}

// Option configures a Library.
type Option func(*options)

type options struct {
	mem    ffibridge.Memory
	logger *zap.Logger
}

// WithMemory makes the library allocate from mem instead of a private
// Linear memory. mem must implement ffibridge.MemorySizer.
func WithMemory(mem ffibridge.Memory) Option {
	return func(o *options) {
		o.mem = mem
	}
}

// WithLogger sets the library logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a library from cfg. Unless WithMemory is given, the library
// owns a private Linear memory of cfg.Memory.Pages pages.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Library, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	if o.mem == nil {
		o.mem = memory.NewLinear(cfg.MemorySize())
	}

	id := uuid.New()
	log := o.logger.With(zap.String("library", cfg.Module.Name), zap.Stringer("id", id))

	arena, err := memory.NewArena(o.mem, memory.ArenaConfig{
		Base:   cfg.Heap.Base,
		Limit:  cfg.HeapLimit(),
		Poison: cfg.Heap.Poison,
	})
	if err != nil {
		return nil, err
	}

	lib := &Library{
		mem:   o.mem,
		arena: arena,
		store: object.NewStore(arena, object.WithPolicy(cfg.Policy()), object.WithLogger(log)),
		log:   log,
		funcs: make(map[string]*Func),
		cfg:   cfg,
		id:    id,
	}
	if err := lib.registerAll(); err != nil {
		return nil, err
	}

	log.Debug("library created",
		zap.Uint32("memory_bytes", cfg.MemorySize()),
		zap.Uint32("heap_base", cfg.Heap.Base),
		zap.Uint32("heap_limit", cfg.HeapLimit()),
		zap.Int("symbols", len(lib.order)))
	return lib, nil
}

// NewWazero creates a library whose linear memory is a wazero module named
// "<module.name>-memory" in rt, so that guest modules can import it. The
// library closes that module on Close.
func NewWazero(ctx context.Context, rt wazero.Runtime, cfg config.Config, opts ...Option) (*Library, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mod, mem, err := memory.Instantiate(ctx, rt, MemoryModuleName(cfg), cfg.Memory.Pages)
	if err != nil {
		return nil, err
	}

	lib, err := New(ctx, cfg, append(opts, WithMemory(mem))...)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	lib.memMod = mod
	return lib, nil
}

// MemoryModuleName returns the name NewWazero gives the memory module.
func MemoryModuleName(cfg config.Config) string {
	return cfg.Module.Name + "-memory"
}

// ID returns the instance identifier.
func (l *Library) ID() uuid.UUID {
	return l.id
}

// Config returns the configuration the library was created with.
func (l *Library) Config() config.Config {
	return l.cfg
}

// Memory returns the library's linear memory.
func (l *Library) Memory() ffibridge.Memory {
	return l.mem
}

// Arena returns the heap allocator.
func (l *Library) Arena() *memory.Arena {
	return l.arena
}

// Objects returns the Utf16Wrap store.
func (l *Library) Objects() *object.Store {
	return l.store
}

// Logger returns the library logger.
func (l *Library) Logger() *zap.Logger {
	return l.log
}

// Close destroys leftover objects, closes the wazero modules the library
// created, and reports every heap allocation still live afterwards (owned
// sequences nobody released) as a combined error.
func (l *Library) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	hostMod, memMod := l.hostMod, l.memMod
	l.mu.Unlock()

	if n := l.store.Close(); n > 0 {
		l.log.Warn("destroyed objects left open", zap.Int("count", n))
	}

	var err error
	if leaks := l.arena.CheckLeaks(); leaks != nil {
		l.log.Warn("leaked allocations", zap.Int("count", len(multierr.Errors(leaks))))
		err = multierr.Append(err, leaks)
	}
	if hostMod != nil {
		if cerr := hostMod.Close(ctx); cerr != nil {
			err = multierr.Append(err, errors.Wrap(errors.PhaseBind, errors.KindInstantiation, cerr, "close host module"))
		}
	}
	if memMod != nil {
		if cerr := memMod.Close(ctx); cerr != nil {
			err = multierr.Append(err, errors.Wrap(errors.PhaseMemory, errors.KindInstantiation, cerr, "close memory module"))
		}
	}
	return err
}

func (l *Library) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
