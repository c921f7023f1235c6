package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for domain operations
var (
	ErrLocationNotFound = goerr.New("location not found")
	ErrIncidentNotFound = goerr.New("incident not found")
	ErrCyclicHierarchy  = goerr.New("cyclic location hierarchy detected")
	ErrInvalidDataset   = goerr.New("invalid dataset")
)
