// Package catalog loads the optional workflow catalog file.
//
// The catalog maps workflow aliases to engine webhook paths and declares
// scheduled triggers. It is read once at startup; a missing or invalid
// entry fails startup instead of producing broken triggers at runtime.
//
// Supported formats are YAML, TOML, and JSON, selected by file
// extension.
//
// Example catalog:
//
//	workflows:
//	  deploy:
//	    path: /webhook/deploy-prod-v2
//	schedules:
//	  - workflow: deploy
//	    cron: "0 3 * * *"
package catalog
