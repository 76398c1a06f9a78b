package app

import (
	"io"

	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/specialistvlad/ttrpgconv/modules/console"
	"github.com/specialistvlad/ttrpgconv/modules/http_asset"
	"github.com/specialistvlad/ttrpgconv/modules/schema_validator"
	"github.com/specialistvlad/ttrpgconv/modules/socketio_events"
	"github.com/specialistvlad/ttrpgconv/modules/yaml_export"
	"github.com/specialistvlad/ttrpgconv/modules/yaml_import"
)

// coreModules is the definitive list of all modules that are compiled into
// the ttrpgconv binary. The console plugin prints to outW.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&console.Module{Out: outW},
		&http_asset.Module{},
		&schema_validator.Module{},
		&socketio_events.Module{},
		&yaml_export.Module{},
		&yaml_import.Module{},
	}
}
