// Package cli builds the ttrpgconv command tree, validates user input and
// maps failures to process exit codes. Flags are translated into the
// application's configuration; everything else is delegated to package app.
//
// Commands:
//
//	ttrpgconv run [CONFIG_PATH...]      execute the pipeline
//	ttrpgconv plan [CONFIG_PATH...]     print the execution batches
//	ttrpgconv plugins list              print the plugin catalogue
//	ttrpgconv plugins discover          scan for plugins and report problems
package cli
