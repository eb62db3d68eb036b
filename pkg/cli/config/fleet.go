package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// fleetSchema closes the fleet file: unknown fields are rejected.
const fleetSchema = `
#Repository: {
	provider:        string & !=""
	owner?:          string
	name:            string & !=""
	duplicateGroup?: string
	createdAt?:      string
}

#Integration: {
	id:       string & !=""
	name?:    string
	provider: string & !=""
	kind?:    "cli_tool" | "api_connection"
}

#Fleet: {
	repositories?:     [...#Repository]
	integrations?:     [...#Integration]
	maxAttempts?:      int & >=1
	cycleLockTimeout?: string
	adapterTimeout?:   string
	concurrency?:      int & >=1
}
`

// Fleet loads the declarative fleet file. The file is CUE; JSON is valid CUE.
type Fleet struct {
	path string
}

func (x *Fleet) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Fleet file (CUE or JSON) listing repositories, integrations and options",
			Category:    "Fleet",
			Destination: &x.path,
			Sources:     cli.EnvVars("OCTOMEND_CONFIG"),
		},
	}
}

func (x *Fleet) LogValue() slog.Value {
	return slog.GroupValue(slog.String("Path", x.path))
}

// Load reads and normalizes the fleet file. Without a file, every discovered
// repository is managed with default options.
func (x *Fleet) Load() (*model.FleetConfig, error) {
	if x.path == "" {
		fleet := &model.FleetConfig{}
		if err := fleet.Normalize(); err != nil {
			return nil, err
		}
		return fleet, nil
	}

	raw, err := os.ReadFile(filepath.Clean(x.path))
	if err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "failed to read fleet file", goerr.V("path", x.path), goerr.V("cause", err.Error()))
	}
	return ParseFleet(raw, x.path)
}

// ParseFleet validates data against the fleet schema and decodes it.
func ParseFleet(data []byte, filename string) (*model.FleetConfig, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileString(fleetSchema, cue.Filename("fleet.schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to compile fleet schema")
	}

	value := cctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "invalid fleet file syntax",
			goerr.V("path", filename), goerr.V("cause", cueerrors.Details(err, nil)))
	}

	unified := schema.LookupPath(cue.ParsePath("#Fleet")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "fleet file does not match schema",
			goerr.V("path", filename), goerr.V("cause", cueerrors.Details(err, nil)))
	}

	var fleet model.FleetConfig
	if err := unified.Decode(&fleet); err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "failed to decode fleet file",
			goerr.V("path", filename), goerr.V("cause", err.Error()))
	}
	if err := fleet.Normalize(); err != nil {
		return nil, goerr.Wrap(err, "invalid fleet file", goerr.V("path", filename))
	}
	return &fleet, nil
}
