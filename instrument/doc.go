// Package instrument rewrites method bodies so that every value of a
// tracked interface family returned from a call is handed to a probe
// together with a unique point id.
//
// # Overview
//
// A Coordinator owns the point id counter and remembers which methods it
// has rewritten. Per module it resolves the tracked interfaces, emits
// references to the probe methods once, and then plans and splices each
// requested method:
//
//	coord := instrument.NewCoordinator(instrument.DefaultConfig())
//	res, err := coord.Rewrite(ctx, module, methodToken)
//
// Given
//
//	call IObservable<string> Observable::Return<string>(string)
//
// the rewritten body reads
//
//	call IObservable<string> Observable::Return<string>(string)
//	ldc.i4 1
//	call IObservable<!!0> Instrument::Returned<string>(IObservable<!!0>, int32)
//
// Interfaces other than the root keep their static type through
// ReturnedSubinterface<T, TObs>.
//
// # Family
//
// The default family is IObservable`1 (root), IConnectableObservable`1 and
// IGroupedObservable`2, whose element type is its second argument. A module
// that never references the root interface is left untouched.
//
// # Arguments
//
// With Config.Arguments set, call arguments are spilled to new locals, a
// Calling(id) marker is emitted, and the arguments are reloaded with
// IObservable ones passing through Argument<T>. A call with by-ref or
// typed-reference parameters keeps its arguments as they are; its return
// value is still reported.
//
// # Events
//
// When Config.Events is set, the coordinator appends a ModuleInfo record per
// module, a MethodInfo record per rewritten method and an
// InstrumentationInfo record per point.
//
// # Matching
//
// Config.Skip excludes callees and Config.Methods restricts the rewritten
// methods, both by "Type::Name":
//
//	cfg.Skip = instrument.NewWildcardMatcher([]string{"System.Reactive.Linq.Observable::*"})
package instrument
