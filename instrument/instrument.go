package instrument

import (
	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/eventlog"
	"github.com/wippyai/ilrewrite/instrument/internal/engine"
	"github.com/wippyai/ilrewrite/metadata"
)

// Interface describes one generic interface whose values are tracked.
//
// Exactly one interface of a family is the root: calls returning it are
// reported through Returned<T>. The others go through
// ReturnedSubinterface<T, TObs>, keeping their static type.
type Interface = engine.Interface

// MethodMatcher selects methods by their "Type::Name" form.
type MethodMatcher = engine.MethodMatcher

// Point is an instrumentation point inserted into a method.
type Point = engine.Point

// ProbeNames names the support assembly, type and methods the inserted
// code calls.
type ProbeNames struct {
	Assembly             string
	Type                 string
	Returned             string
	ReturnedSubinterface string
	Calling              string
	Argument             string
	PublicKeyToken       []byte
	Version              metadata.Version
}

// Config configures instrumentation.
type Config struct {
	// Logger overrides the package logger for the coordinator.
	Logger *zap.Logger
	// Events receives module, method and point records. Nil disables them.
	Events *eventlog.Log
	// Skip excludes callees, matched by "Type::Name".
	Skip MethodMatcher
	// Methods restricts which method bodies are rewritten. Nil rewrites all.
	Methods MethodMatcher
	Probes  ProbeNames
	Tracked []Interface
	// Workers bounds RewriteAll's parallelism. Zero or less means unbounded.
	Workers int
	// Arguments enables wrapping tracked call arguments with Argument<T>.
	Arguments bool
}

// DefaultProbes returns the names of the reactivity profiler support
// library.
func DefaultProbes() ProbeNames {
	return ProbeNames{
		Assembly:             "ReactivityProfiler.Support",
		Type:                 "ReactivityProfiler.Support.Instrument",
		Returned:             "Returned",
		ReturnedSubinterface: "ReturnedSubinterface",
		Calling:              "Calling",
		Argument:             "Argument",
		PublicKeyToken:       []byte{0xa8, 0xb3, 0x93, 0x07, 0x28, 0x3e, 0x56, 0x3a},
		Version:              metadata.Version{Major: 1},
	}
}

// DefaultTracked returns the IObservable family.
func DefaultTracked() []Interface {
	return []Interface{
		{Name: "System.IObservable`1", Arity: 1, Root: true},
		{Name: "System.Reactive.Subjects.IConnectableObservable`1", Arity: 1},
		{Name: "System.Reactive.Linq.IGroupedObservable`2", Arity: 2, ElemArg: 1},
	}
}

// DefaultConfig returns a configuration tracking the IObservable family
// with argument instrumentation disabled.
func DefaultConfig() Config {
	return Config{
		Probes:  DefaultProbes(),
		Tracked: DefaultTracked(),
	}
}
