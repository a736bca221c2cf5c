package export

import (
	"context"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/wippyai/ffi-bridge/errors"
)

// Invoke calls the symbol named name directly, without a wazero runtime.
// stack must have room for the larger of the parameter and result counts.
// Precondition violations are returned, or panic under the panic policy.
func (l *Library) Invoke(ctx context.Context, name string, stack []uint64) error {
	if l.isClosed() {
		return errors.InvalidInput(errors.PhaseExport, "library is closed")
	}
	f, ok := l.funcs[name]
	if !ok {
		return errors.NotFound(errors.PhaseExport, "symbol", name)
	}
	if len(stack) < f.StackSize() {
		return errors.New(errors.PhaseExport, errors.KindInvalidInput).
			Path(name).
			Detail("stack has %d slots, need %d", len(stack), f.StackSize()).
			Build()
	}
	if err := f.Handler(ctx, stack); err != nil {
		l.log.Debug("call failed", zap.String("symbol", name), zap.Error(err))
		return l.enforce(err)
	}
	return nil
}

// Call is Invoke for callers holding plain arguments. It returns the
// results.
func (l *Library) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	f, ok := l.funcs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseExport, "symbol", name)
	}
	if len(params) != len(f.Params) {
		return nil, errors.New(errors.PhaseExport, errors.KindInvalidInput).
			Path(name).
			Detail("expected %d params, got %d", len(f.Params), len(params)).
			Build()
	}
	stack := make([]uint64, f.StackSize())
	copy(stack, params)
	if err := l.Invoke(ctx, name, stack); err != nil {
		return nil, err
	}
	return stack[:len(f.Results)], nil
}

// Require checks that every named symbol is exported.
func (l *Library) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := l.funcs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingSymbolsError(missing)
	}
	return nil
}

// Symbols returns the sorted names of exported symbols matching pattern,
// a doublestar glob such as "Utf16Wrap_*" or "diplomat_*".
// An empty pattern matches everything.
func (l *Library) Symbols(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.New(errors.PhaseExport, errors.KindInvalidInput).
			Detail("bad symbol pattern %q", pattern).
			Build()
	}
	var out []string
	for _, name := range l.order {
		if ok, _ := doublestar.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
