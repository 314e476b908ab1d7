// Package engine finds calls whose return type belongs to a tracked generic
// interface family and splices probe calls around them.
//
// Planning walks the decoded instructions of one method, resolves every
// call and callvirt target through the module's metadata, and substitutes
// the callee's generic arguments into the element type of the returned
// interface. Applying a plan mints method spec tokens for the probes and
// inserts
//
//	ldc.i4 <id>
//	call   Returned<T>
//
// after each call. With argument instrumentation the call's parameters are
// first spilled to fresh locals, a Calling(id) marker is emitted, and the
// parameters are reloaded with tracked ones passing through Argument<T>.
package engine
