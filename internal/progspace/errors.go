package progspace

import "errors"

var (
	// ErrDuplicateObjfile is returned when an objfile name is already loaded.
	ErrDuplicateObjfile = errors.New("objfile already loaded")

	// ErrUnknownObjfile is returned when no objfile matches a name.
	ErrUnknownObjfile = errors.New("unknown objfile")

	// ErrUnknownProgramSpace is returned when no program space has an id.
	ErrUnknownProgramSpace = errors.New("unknown program space")
)
