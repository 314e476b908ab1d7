// Package ilrewrite rewrites CIL method bodies of .NET modules to report
// every IObservable created at a call site to a profiler support library.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	ilrewrite/           Root package (documentation only)
//	├── sig/             Compressed integers, signature blobs and generic substitution
//	├── il/              Method body decoding, splicing and encoding with EH clauses
//	├── metadata/        Metadata tables behind the Resolver and Emitter interfaces
//	├── instrument/      Coordinator: probes, method ids and once-per-method rewriting
//	├── eventlog/        Instrumentation records and their sinks
//	├── cfg/             Control-flow graphs of decoded bodies
//	├── config/          ilrw.toml configuration
//	├── errors/          Structured error types for debugging
//	└── cmd/ilrw/        Command-line rewriter and interactive browser
//
// # Quick Start
//
// Rewrite every method of a module image:
//
//	img, err := metadata.LoadImage("App.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	coord := instrument.NewCoordinator(instrument.DefaultConfig())
//	results, err := coord.RewriteAll(ctx, img, img.Methods())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range results {
//	    fmt.Println(r.Name, len(r.Points))
//	}
//
// # Rewriting
//
// A call whose return type is an instantiation of a tracked interface gets
// a probe call inserted right after it. The probe receives the returned
// value and a method-unique instrumentation id and returns the value
// unchanged, so the stack shape seen by the rest of the body is preserved.
// Branch targets, exception clause bounds and the max stack value are
// updated to match.
//
// # Thread Safety
//
// Coordinator is safe for concurrent use. Each method is rewritten at most
// once per coordinator; concurrent requests for the same method share the
// first result. il.Method is NOT thread-safe.
package ilrewrite
