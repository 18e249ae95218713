package obfuscator

import (
	"errors"

	"github.com/whit3rabbit/pymixer/internal/pytree"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

// Errors returned by the engine. Test for them with errors.Is; a parse
// failure also carries a *ParseError reachable with errors.As.
var (
	ErrParse            = pytree.ErrSyntax
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrEncodingOverflow = transformer.ErrEncodingOverflow
	ErrGeneration       = scrambler.ErrExhausted
	ErrEngineUsed       = errors.New("engine already used")
)

// ParseError locates the first syntax error in rejected source text.
type ParseError = pytree.ParseError
