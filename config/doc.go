// Package config loads and validates library configuration.
//
// Sources are layered with koanf, later ones winning:
//
//	defaults -> YAML file -> command-line flags -> FFIBRIDGE_* environment
//
// A configuration file looks like:
//
//	module:
//	  name: ffibridge
//	memory:
//	  pages: 1
//	heap:
//	  base: 1024
//	  size: 0        # rest of memory
//	  poison: true
//	violation:
//	  policy: error  # or panic
//	log:
//	  level: info
//
// Files are checked against the JSON schema from Schema before they are
// merged, so misspelled keys fail loudly instead of being ignored.
package config
