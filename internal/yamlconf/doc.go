// Package yamlconf reads plugin manifests written in YAML. Every document is
// validated against the embedded JSON schema before it is decoded, so
// malformed manifests are rejected with the schema's error report.
//
// A file holds either a single manifest or a list under "plugins":
//
//	name: foundry_export
//	version: 1.0.0
//	capabilities: [export:foundry]
//	dependencies: [roll20_reader]
//	config:
//	  world: my-campaign
package yamlconf
