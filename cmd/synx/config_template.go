package main

import "synx/internal/config"

// defaultConfigTOML is written out by `config init` as a starting
// point for a user's own config.toml.
const defaultConfigTOML = `[general]
strict = false
verbose = false
watch = false
watch_interval = 500
timeout = 30
parallel = 4
format = "text"

[cache]
enabled = true
ttl = 720
max_entries = 10000

[policy]
strict = false
allow_network = false
max_processes = 8
restricted_paths = []

[audit]
enabled = true
min_severity = "info"
max_log_size_bytes = 10485760
log_retention = 5

[file_mappings]

# [validators.python]
# enabled = true
# command = "/usr/local/bin/synx-python-validator"
# timeout = 10
`

// loadedConfigWithWarnings re-reads the config file at path against
// fresh defaults, for `config validate`.
func loadedConfigWithWarnings(path string) (config.Config, []string, error) {
	return config.LoadFrom(path, config.DefaultConfig())
}
