// Package stores persists the results of expensive engine probes. Version
// detection, configuration dumps and collection inventory scans all shell
// out to the engine; their results are stable for the lifetime of an
// installation, so they are cached in a SQLite database under the project
// cache directory and reused until they expire or the cache is cleaned.
package stores
