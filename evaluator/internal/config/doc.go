// Package config loads and watches the evaluator configuration file (config.yaml).
//
// Top-level types:
//   - Config{Evaluator, Alerts}: full config tree parsed from YAML
//   - EvaluatorConfig: library_path, readings_path, workers, ccm, audit,
//     metrics, watch
//   - WatchConfig: scrape_interval, retention, sources []
//   - Source: id, endpoint, metric, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve from environment variables
//   - AlertsConfig: min_level, cooldown, webhooks []
//
// Load(path) reads the YAML file, applies defaults (4 workers, 5m scrape,
// 30 day retention, yellow min level, 6h cooldown), then validates required
// fields and enums. Relative file paths are resolved against the directory
// holding the config file.
//
// Watch(ctx, path, onChange) and WatchFile(ctx, path, reload) use fsnotify to
// detect file changes. A failed reload is logged and the previous state stays
// active.
package config
