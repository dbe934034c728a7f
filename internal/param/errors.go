package param

import "errors"

// Parameter errors.
var (
	// ErrUnknownParameter indicates no parameter has the requested name.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrInvalidValue indicates a value token is not valid for the parameter.
	ErrInvalidValue = errors.New("invalid parameter value")

	// ErrAlreadyRegistered indicates a duplicate parameter definition.
	ErrAlreadyRegistered = errors.New("parameter already registered")

	// ErrUnknownCommand indicates a command line that is neither set nor show.
	ErrUnknownCommand = errors.New("unknown parameter command")
)
