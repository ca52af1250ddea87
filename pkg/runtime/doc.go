// Package runtime provides a facade over installed versions of the
// automation engine. It locates the engine executables, detects their
// version, prepares an isolated cache directory, installs collections
// and roles, and executes engine commands with a uniform environment so
// downstream tooling behaves the same across engine releases.
//
// A Runtime is created once per project and is safe for concurrent use.
// Command execution supports retries, output teeing, probe caching
// through a stores.Store, and is instrumented with the telemetry
// package's logger, metrics, and tracer.
package runtime
