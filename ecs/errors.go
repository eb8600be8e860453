package ecs

import "errors"

// Store errors
var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrBadComponent   = errors.New("component must be a non-nil pointer of the keyed type")
)

// Hierarchy errors
var (
	ErrHierarchyCycle = errors.New("parenting would create a hierarchy cycle")
)
