package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Pipeline  *pipelineBlock  `hcl:"pipeline,block"`
	Manager   *managerBlock   `hcl:"manager,block"`
	Discovery *discoveryBlock `hcl:"discovery,block"`
	Plugins   []*pluginBlock  `hcl:"plugin,block"`
	Remain    hcl.Body        `hcl:",remain"`
}

type pipelineBlock struct {
	Name              *string  `hcl:"name,optional"`
	MaxParallel       *int     `hcl:"max_parallel,optional"`
	PerNodeTimeout    *string  `hcl:"per_node_timeout,optional"`
	ContinueOnError   *bool    `hcl:"continue_on_error,optional"`
	ValidateBeforeRun *bool    `hcl:"validate_before_run,optional"`
	Plugins           []string `hcl:"plugins,optional"`
	RequiredRoles     []string `hcl:"required_roles,optional"`
}

type managerBlock struct {
	ValidateOnRegister *bool    `hcl:"validate_on_register,optional"`
	InitTimeout        *string  `hcl:"init_timeout,optional"`
	CacheDir           *string  `hcl:"cache_dir,optional"`
	Active             []string `hcl:"active,optional"`
}

type discoveryBlock struct {
	SearchPaths  []string `hcl:"search_paths,optional"`
	Extensions   []string `hcl:"extensions,optional"`
	MaxDepth     *int     `hcl:"max_depth,optional"`
	AllowDynamic *bool    `hcl:"allow_dynamic,optional"`
	Tags         []string `hcl:"tags,optional"`
	MaxPerRole   *int     `hcl:"max_per_role,optional"`
}

type pluginBlock struct {
	Name         string         `hcl:"name,label"`
	Version      string         `hcl:"version,optional"`
	Kind         string         `hcl:"kind,optional"`
	Description  string         `hcl:"description,optional"`
	Author       string         `hcl:"author,optional"`
	Capabilities []string       `hcl:"capabilities,optional"`
	DependsOn    []string       `hcl:"depends_on,optional"`
	Enabled      *bool          `hcl:"enabled,optional"`
	Config       hcl.Expression `hcl:"config,optional"`
}
