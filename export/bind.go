package export

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/ffi-bridge/errors"
)

// Bind instantiates the exported symbols as a wazero host module named
// after config module.name. Guest modules import them from there.
//
// Host functions operate on the library memory, not the caller's, so a
// guest must share it (see NewWazero) for pointers to agree. A failing
// call traps: C callers have no channel for the error.
func (l *Library) Bind(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.InvalidInput(errors.PhaseBind, "library is closed")
	}
	if l.hostMod != nil {
		return l.hostMod, nil
	}

	name := l.cfg.Module.Name
	if rt.Module(name) != nil {
		return nil, errors.Registration(errors.PhaseBind, name,
			errors.InvalidInput(errors.PhaseBind, "module name already in use"))
	}

	builder := rt.NewHostModuleBuilder(name)
	for _, sym := range l.order {
		f := l.funcs[sym]
		builder.NewFunctionBuilder().
			WithGoModuleFunction(l.hostFunc(f), f.Params, f.Results).
			WithParameterNames(f.ParamNames...).
			WithResultNames(f.ResultNames...).
			Export(f.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	l.hostMod = mod
	l.log.Info("host module bound", zap.String("module", name), zap.Int("symbols", len(l.order)))
	return mod, nil
}

// hostFunc adapts f to wazero. Errors become traps by panicking, which
// wazero recovers and returns from the guest's Call.
func (l *Library) hostFunc(f *Func) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		if err := f.Handler(ctx, stack); err != nil {
			l.log.Debug("call trapped", zap.String("symbol", f.Name), zap.Error(err))
			panic(l.enforce(err))
		}
	}
}
