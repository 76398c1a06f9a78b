// Package registry is the plugin catalogue.
//
// It stores two things for a single application instance: catalogue entries
// (the descriptor of every plugin that may take part in a pipeline, plus the
// binding to the compiled Go implementation that backs it) and the compiled
// implementations themselves, registered by kind through explicit Module
// registration. There is no global state and no reflection-driven discovery.
//
// During startup the registry is populated from compiled-in modules and
// manifests, then validated with ValidateRegistry so that catalogue entries
// and Go implementations are in sync before anything runs.
package registry
