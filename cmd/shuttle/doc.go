// Package main hosts the Shuttle CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// runs: multi-model translation, review of existing translations, alignment
// of source and target documents, task history inspection, and configuration
// scaffolding. It centralizes configuration resolution, logging setup, and
// run locking so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
