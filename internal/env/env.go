package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/dlrshim/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// FromEnv reads the environment from DLRSHIM_ENV, defaulting to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.DlrshimEnv))
}

// Parse maps a name to an Environment. Unknown names are Development.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is Production.
func (e Environment) IsProduction() bool {
	return e == Production
}

func (e Environment) String() string {
	return string(e)
}
