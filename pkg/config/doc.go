// Package config exposes the resolved configuration of the installed
// automation engine. The engine's own `ansible-config dump` command is the
// source of truth: its output is parsed into typed values so callers never
// have to scrape the text themselves. Keys are canonicalized to upper case
// and legacy aliases from older engine releases are resolved transparently.
package config
