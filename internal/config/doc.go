// Package config loads, normalizes, and validates a project's process and
// task definitions.
//
// A project is configured by a drover.toml at its root, or by a Procfile as a
// fallback. TOML files declare long-running processes under [processes],
// one-off and composite tasks under [tasks], and daemon defaults under
// [settings]. Procfiles declare processes only, one "name: command" per line.
// Loading canonicalizes the project root, expands user paths, normalizes task
// names to their dotted form, and runs a validation pass that reports every
// problem at once.
//
// The loaded Project is read-only to the rest of the system; the supervisor,
// task runner, and CLI never write configuration back.
package config
