/*
Package config resolves replay manager settings.

# Overview

Config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
Settings is the resolved, typed view the replay manager consumes.

# Keys

Keys are flat, dotted strings:

	channel.checkpoint.directory       checkpoint directory (default os.TempDir())
	channel.checkpoint.cancel_timeout  bound on waiting for a superseded replay (default 0, unbounded)
	channel.checkpoint.poll_interval   partial replay re-check interval (default 100ms)
	channel.checkpoint.history         SQLite history file (default in-memory)

# Loading

Load applies, in order: defaults, the optional file (YAML, JSON or TOML by
extension), and CHANREPLAY_* environment variables:

	settings, err := config.Load("replay.yaml")
	if err != nil {
	    log.Fatal(err)
	}

Duration values accept strings parsed with time.ParseDuration ("30s") or
numbers interpreted as seconds.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
