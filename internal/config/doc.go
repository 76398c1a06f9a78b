// Package config defines the format-agnostic configuration model for the
// application, along with the Loader interface implemented by the format
// specific packages (HCL in package hcl, YAML manifests in package yamlconf).
//
// The config.Model is the single source of truth for the manager, the
// pipeline and discovery. Loaders only overlay values that are present in
// their sources on top of Default.
package config
