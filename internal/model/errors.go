package model

import (
	"errors"
	"fmt"
)

var ErrSourceInactive = errors.New("node data source is inactive")

var _ error = InitializationError{}

type InitializationError struct {
	Service Service
	Err     error
}

func (err InitializationError) Error() string {
	return fmt.Sprintf("could not perform initial refresh for service %s: %v", err.Service, err.Err)
}

func (err InitializationError) Unwrap() error {
	return err.Err
}

type ServiceNotFoundError struct {
	Service Service
}

func (err ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %s not found", err.Service)
}

type NoNodesError struct {
	Service Service
}

func (err NoNodesError) Error() string {
	return fmt.Sprintf("no matching nodes for service %s", err.Service)
}
