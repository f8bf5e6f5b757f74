package ports

import "github.com/skillforge/edgecache/pkg/log"

// Logger re-exports the logging abstraction so internal packages depend on
// ports alone.
type Logger = log.Logger

// Field re-exports the structured log field type.
type Field = log.Field

// Field constructors re-exported for convenience.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
