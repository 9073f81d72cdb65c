// Package idgen mints and validates the version-4 UUIDs used as project,
// node, and link identifiers throughout the controller. It is the single
// place that enforces the UUID-discipline invariant so every other package
// can treat an id as already-validated once it has passed through here.
package idgen

import (
	"github.com/gofrs/uuid"

	"github.com/sandia-minimega/topoctl/internal/ctlerr"
)

// New generates a fresh version-4 UUID string.
func New() string {
	return uuid.Must(uuid.NewV4()).String()
}

// Validate parses s as a version-4 UUID, returning a BadRequest error if it
// is malformed or not version 4. Callers use this for externally supplied
// identifiers (e.g. a caller-chosen project id); ids minted by New never
// need to pass back through it.
func Validate(s string) error {
	id, err := uuid.FromString(s)
	if err != nil {
		return ctlerr.BadRequest("%s is not a valid UUID", s)
	}

	if id.Version() != 4 {
		return ctlerr.BadRequest("%s is not a version 4 UUID", s)
	}

	return nil
}

// OrNew returns s validated as a v4 UUID, or a freshly minted one if s is
// empty. project.New and Project.AddNode use it for project and node ids;
// node.New and link.NewUDP take their id as given without validating it.
func OrNew(s string) (string, error) {
	if s == "" {
		return New(), nil
	}

	if err := Validate(s); err != nil {
		return "", err
	}

	return s, nil
}
