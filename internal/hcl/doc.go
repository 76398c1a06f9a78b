// Package hcl provides the HCL implementation of the config.Loader and
// config.ManifestLoader interfaces. It is responsible for file parsing,
// HCL-to-model translation and converting free-form cty values (plugin
// config blocks) into plain Go values.
//
// A configuration file may contain any of these top-level blocks:
//
//	pipeline  { name, max_parallel, per_node_timeout, continue_on_error,
//	            validate_before_run, plugins, required_roles }
//	manager   { validate_on_register, init_timeout, cache_dir, active }
//	discovery { search_paths, extensions, max_depth, allow_dynamic, tags,
//	            max_per_role }
//	plugin "<name>" { version, kind, description, author, capabilities,
//	                  depends_on, enabled, config }
package hcl
