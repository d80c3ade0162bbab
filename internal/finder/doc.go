// Package finder implements kernel discovery aggregation.
//
// A Finder is one source of kernels: local kernelspec directories, a remote
// Jupyter server, or kernels contributed through configuration. Each finder
// becomes ready asynchronously, then answers ListContributedKernels
// synchronously and signals OnDidChangeKernels whenever its list changes.
//
// # Registry
//
// The Registry owns the ordered set of registered finders:
//
//  1. Register appends a finder, forwards its change events and fires one
//     merged change event. The returned Registration removes exactly that
//     entry when disposed (one more event).
//  2. ListKernels waits for every finder to be ready, then concatenates their
//     lists in registration order. No ranking, no deduplication.
//  3. GetFinderForConnection maps a kernel id back to the finder that listed
//     it in the last completed ListKernels. When two finders list the same id,
//     the later-registered finder wins.
//
// The merged change event is a push hint only: "your view may be stale, list
// again". ListKernels itself never fires it.
//
// # Policies
//
// FailurePolicy selects between FailFast (the first readiness failure aborts
// the listing) and Isolate (a failing finder contributes nothing to that
// call). ListPolicy selects between Serialize (one listing at a time) and
// Concurrent (overlapping calls; the most recently started call's index is
// kept). Either way the reverse index always holds the result of exactly one
// call.
//
// Cancellation of the listing context is a normal outcome: the call returns an
// empty result and no error, and the index is not touched.
package finder
