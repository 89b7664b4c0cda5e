// Package config loads statebus settings from YAML or JSON.
//
// A file may hold the settings at the top level or under a "statebus" key,
// so the section can live inside a larger application config:
//
//	statebus:
//	  metrics: true
//	  tracing: false
//	  log_level: debug
//	  wait_timeout: 5s
//	  id_prefix: "orders-"
//
// References such as ${STATEBUS_LOG_LEVEL} are expanded from the environment
// before the document is parsed. Load it and build a hub from it:
//
//	cfg, err := config.FromFile("app.yaml")
//	if err != nil {
//	    return err
//	}
//	hub := statebus.NewFromConfig(cfg)
//
// Missing or malformed values fall back to defaults rather than failing, the
// same way every Config accessor does.
package config
