package instrument

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/ilrewrite/eventlog"
	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/instrument/internal/engine"
	"github.com/wippyai/ilrewrite/metadata"
	"github.com/wippyai/ilrewrite/sig"
)

// Skip is a call site the planner left alone.
type Skip struct {
	Reason string
	Offset int
	Callee sig.Token
}

// Result describes the rewrite of one method.
type Result struct {
	Name    string
	Points  []Point
	Skipped []Skip
	ILMap   []il.ILMapEntry
	// Body is the rewritten body, nil when the method was left unchanged.
	Body   []byte
	Module uint64
	Method sig.Token
	// Err is set by RewriteAll when the method could not be rewritten.
	Err error
}

// Changed reports whether the method body was replaced.
func (r *Result) Changed() bool { return r.Body != nil }

// moduleState is created once per module.
type moduleState struct {
	engine *engine.Engine // nil when the module never references the root
}

// Coordinator owns the state shared by every rewrite: the point id counter,
// per-module probe references and the table of methods already rewritten.
// Concurrent requests for the same method wait for a single rewrite and
// share its result. Only successful rewrites are remembered; a failed
// method is attempted again on the next request.
type Coordinator struct {
	cfg     Config
	log     *zap.Logger
	flight  singleflight.Group
	modules sync.Map // uint64 -> *moduleState
	methods sync.Map // string -> *Result
	nextID  atomic.Int32
}

// NewCoordinator creates a coordinator. Point ids start at 1.
func NewCoordinator(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Coordinator{cfg: cfg, log: log}
}

// NextID allocates an instrumentation point id.
func (c *Coordinator) NextID() int32 {
	return c.nextID.Add(1)
}

// Rewrite instruments one method of mod and stores the new body through
// mod.SetMethodBody. Rewriting a method twice returns the first result.
func (c *Coordinator) Rewrite(ctx context.Context, mod metadata.Module, tok sig.Token) (*Result, error) {
	key := fmt.Sprintf("%d/%08x", mod.ID(), uint32(tok))
	if r, ok := c.methods.Load(key); ok {
		return r.(*Result), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		if r, ok := c.methods.Load(key); ok {
			return r, nil
		}
		r, err := c.rewrite(mod, tok)
		if err != nil {
			return nil, err
		}
		c.methods.Store(key, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("joined in-flight rewrite", zap.String("method", key))
	}
	return v.(*Result), nil
}

// RewriteAll rewrites every method in toks, in parallel up to
// Config.Workers. Results are in toks order. A method that fails to rewrite
// keeps its body and reports the failure in Result.Err; the other methods
// are unaffected. The returned error is non-nil only when ctx is done.
func (c *Coordinator) RewriteAll(ctx context.Context, mod metadata.Module, toks []sig.Token) ([]*Result, error) {
	results := make([]*Result, len(toks))
	var g errgroup.Group
	if c.cfg.Workers > 0 {
		g.SetLimit(c.cfg.Workers)
	}
	for i, tok := range toks {
		g.Go(func() error {
			r, err := c.Rewrite(ctx, mod, tok)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				name := metadata.MethodName(mod, tok)
				c.log.Warn("method rewrite failed", zap.String("method", name), zap.Error(err))
				r = &Result{
					Name:   name,
					Module: mod.ID(),
					Method: tok,
					Err:    fmt.Errorf("rewriting %s: %w", name, err),
				}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Failed returns the results whose rewrite failed.
func Failed(results []*Result) []*Result {
	var out []*Result
	for _, r := range results {
		if r != nil && r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func (c *Coordinator) rewrite(mod metadata.Module, tok sig.Token) (*Result, error) {
	res := &Result{Module: mod.ID(), Method: tok, Name: metadata.MethodName(mod, tok)}
	if c.cfg.Methods != nil && !c.cfg.Methods.MatchMethod(res.Name) {
		return res, nil
	}

	state, err := c.module(mod)
	if err != nil {
		return nil, err
	}
	if state.engine == nil {
		return res, nil
	}

	body, err := mod.MethodBody(tok)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	m, err := il.Decode(body)
	if err != nil {
		return nil, err
	}

	edits, skipped := state.engine.Plan(m)
	for _, s := range skipped {
		res.Skipped = append(res.Skipped, Skip{Reason: s.Err.Error(), Offset: s.Offset, Callee: s.Callee})
	}
	if len(edits) == 0 {
		return res, nil
	}

	points, err := state.engine.Apply(m, edits)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return res, nil
	}
	out, err := m.Encode()
	if err != nil {
		return nil, err
	}
	if err := mod.SetMethodBody(tok, out); err != nil {
		return nil, fmt.Errorf("storing body: %w", err)
	}
	res.Points = points
	res.ILMap = m.ILMap()
	res.Body = out

	c.log.Info("method instrumented",
		zap.String("method", res.Name),
		zap.Uint32("token", uint32(tok)),
		zap.Int("points", len(points)),
		zap.Int("skipped", len(skipped)))
	c.record(&eventlog.MethodInfo{
		Name:          res.Name,
		ModuleID:      res.Module,
		FunctionToken: uint32(tok),
		Points:        uint32(len(points)),
	})
	for _, p := range points {
		c.record(&eventlog.InstrumentationInfo{
			Point:             p.ID,
			ModuleID:          res.Module,
			FunctionToken:     uint32(tok),
			InstructionOffset: int32(p.Offset),
			CalledMethod:      p.Name,
		})
	}
	return res, nil
}

// module returns the per-module state, creating it on first use.
func (c *Coordinator) module(mod metadata.Module) (*moduleState, error) {
	id := mod.ID()
	if s, ok := c.modules.Load(id); ok {
		return s.(*moduleState), nil
	}
	v, err, _ := c.flight.Do(fmt.Sprintf("module/%d", id), func() (any, error) {
		if s, ok := c.modules.Load(id); ok {
			return s, nil
		}
		s, err := c.newModule(mod)
		if err != nil {
			return nil, err
		}
		c.modules.Store(id, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*moduleState), nil
}

func (c *Coordinator) newModule(mod metadata.Module) (*moduleState, error) {
	c.record(&eventlog.ModuleInfo{ModuleID: mod.ID(), Path: mod.Path()})

	tracked, root := resolveTracked(mod, c.cfg.Tracked)
	if tracked == nil {
		c.log.Debug("module does not reference the tracked interface",
			zap.Uint64("module", mod.ID()),
			zap.String("path", mod.Path()))
		return &moduleState{}, nil
	}
	probes, err := defineProbes(mod, c.cfg.Probes, root)
	if err != nil {
		return nil, fmt.Errorf("module %d: %w", mod.ID(), err)
	}
	return &moduleState{engine: engine.New(engine.Config{
		Module:    mod,
		Skip:      c.cfg.Skip,
		NextID:    c.NextID,
		Tracked:   tracked,
		Probes:    probes,
		Arguments: c.cfg.Arguments,
	})}, nil
}

func (c *Coordinator) record(rec eventlog.Record) {
	if c.cfg.Events == nil {
		return
	}
	if _, err := c.cfg.Events.Append(rec); err != nil {
		c.log.Warn("failed to record event", zap.Stringer("kind", rec.Kind()), zap.Error(err))
	}
}
