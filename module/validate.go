package module

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/bvisness/wasm-validate/utils"
	"github.com/bvisness/wasm-validate/validate"
	"github.com/bvisness/wasm-validate/wasm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Concurrency is the number of function bodies checked at once. Zero
	// means GOMAXPROCS and a negative number means no limit. With a
	// concurrency of one, the error returned is always from the first
	// failing function in Funcs order.
	Concurrency int

	// Funcs restricts validation to these function indices. Nil means every
	// function with a body.
	Funcs []uint32

	Logger *zap.Logger
}

// Validate checks the bodies of a decoded module's functions. It stops at
// the first invalid function.
func Validate(ctx context.Context, m *Module, opts Options) error {
	log := utils.Or(opts.Logger, zap.NewNop())

	funcs := opts.Funcs
	if funcs == nil {
		for i := m.NumImportedFuncs; i < uint32(len(m.Funcs)); i++ {
			funcs = append(funcs, i)
		}
	}

	concurrency := utils.Or(opts.Concurrency, runtime.GOMAXPROCS(0))

	allocsPool := sync.Pool{
		New: func() any {
			return &validate.Allocations{}
		},
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, idx := range funcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			funcStart := time.Now()
			allocs := allocsPool.Get().(*validate.Allocations)
			allocs, err := m.ValidateFunc(idx, allocs)
			allocsPool.Put(allocs)
			if err != nil {
				log.Error("function failed validation", zap.Uint32("func", idx), zap.Error(err))
				return fmt.Errorf("func %d: %w", idx, err)
			}
			log.Debug("validated function",
				zap.Uint32("func", idx),
				zap.Int("size", len(m.Funcs[idx].Body)),
				zap.Duration("elapsed", time.Since(funcStart)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("validation complete",
		zap.Int("funcs", len(funcs)),
		zap.Int("concurrency", concurrency),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// ValidateFunc checks a single function body. It always hands back a set of
// allocations for the next call, even on failure.
func (m *Module) ValidateFunc(funcIdx uint32, allocs *validate.Allocations) (*validate.Allocations, error) {
	if funcIdx >= uint32(len(m.Funcs)) {
		return allocs, fmt.Errorf("unknown function %d: function index out of bounds", funcIdx)
	}
	f := m.Funcs[funcIdx]
	if f.Imported {
		return allocs, fmt.Errorf("function %d is imported and has no body", funcIdx)
	}

	fv, err := validate.NewFuncValidator(m, m.Features, m.Types[f.TypeIdx], allocs)
	if err != nil {
		return allocs, err
	}
	err = m.checkBody(fv, f)
	return fv.IntoAllocations(), err
}

func (m *Module) checkBody(fv *validate.FuncValidator, f Func) error {
	p := newParserFromBytes(f.Body, f.BodyOffset)

	numDecls, err := p.ReadCount("local declarations")
	if err != nil {
		return err
	}
	for range numDecls {
		at := p.cur
		n, err := p.ReadU32("local count")
		if err != nil {
			return err
		}
		t, err := p.ReadValType("local type")
		if err != nil {
			return err
		}
		if err := fv.DefineLocals(at, n, t); err != nil {
			return err
		}
	}

	var in wasm.Instr
	for !p.AtEnd() {
		at := p.cur
		if err := p.ReadInstr(&in); err != nil {
			return err
		}
		if err := fv.Op(at, &in); err != nil {
			return err
		}
	}
	return fv.Finish(p.cur)
}
