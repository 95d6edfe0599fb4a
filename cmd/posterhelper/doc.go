// Package main hosts the posterhelper CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into batch runs
// against ThePosterDB and MediUX urls, bulk file maintenance, title mapping
// edits, artwork resets and configuration scaffolding. It centralizes
// configuration resolution, logging setup, the Plex client and the run lock
// so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
