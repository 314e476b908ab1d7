package engine

import (
	"sync/atomic"

	"github.com/wippyai/ilrewrite/metadata"
	"github.com/wippyai/ilrewrite/sig"
)

// Interface describes one generic interface whose values are tracked.
type Interface struct {
	Name    string // type reference name, e.g. System.IObservable`1
	Arity   int
	ElemArg int  // index of the element type argument
	Root    bool // handed to Returned<T>; others go through ReturnedSubinterface<T, TObs>
}

// Tracked is an Interface resolved to a type reference of one module.
type Tracked struct {
	Interface
	Token sig.Token
}

// Probes holds the member references the inserted code calls.
type Probes struct {
	Returned             sig.Token // Returned<T>(IObservable<T>, int32) : IObservable<T>
	ReturnedSubinterface sig.Token // ReturnedSubinterface<T, TObs>(TObs, int32) : TObs
	Calling              sig.Token // Calling(int32) : void
	Argument             sig.Token // Argument<T>(IObservable<T>, int32) : IObservable<T>
}

func (p *Probes) contains(tok sig.Token) bool {
	if tok.IsNil() {
		return false
	}
	return tok == p.Returned || tok == p.ReturnedSubinterface || tok == p.Calling || tok == p.Argument
}

// MethodMatcher selects methods by their "Type::Name" form.
type MethodMatcher interface {
	MatchMethod(name string) bool
}

// Config configures the planning engine for one module.
type Config struct {
	Module metadata.Module
	// Skip excludes callees from instrumentation.
	Skip MethodMatcher
	// NextID allocates instrumentation point ids. When nil the engine
	// counts from 1 on its own.
	NextID  func() int32
	Tracked []Tracked
	Probes  Probes
	// Arguments enables spilling and reloading call arguments so tracked
	// arguments pass through Argument<T> before the call.
	Arguments bool
}

// Engine plans and applies call-site instrumentation for the methods of a
// single module. Plan and Apply may run concurrently on distinct methods.
type Engine struct {
	module    metadata.Module
	skip      MethodMatcher
	nextID    func() int32
	tracked   []Tracked
	probes    Probes
	arguments bool
}

// New creates an engine for cfg.Module.
func New(cfg Config) *Engine {
	next := cfg.NextID
	if next == nil {
		var n atomic.Int32
		next = func() int32 { return n.Add(1) }
	}
	return &Engine{
		module:    cfg.Module,
		skip:      cfg.Skip,
		nextID:    next,
		tracked:   append([]Tracked(nil), cfg.Tracked...),
		probes:    cfg.Probes,
		arguments: cfg.Arguments,
	}
}

func (e *Engine) lookup(tok sig.Token) *Tracked {
	for i := range e.tracked {
		if e.tracked[i].Token == tok {
			return &e.tracked[i]
		}
	}
	return nil
}

func (e *Engine) root() *Tracked {
	for i := range e.tracked {
		if e.tracked[i].Root {
			return &e.tracked[i]
		}
	}
	return nil
}
