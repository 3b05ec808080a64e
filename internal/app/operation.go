package app

import "photons/internal/photons"

// Operation tracks the CLI command run against one target. Commands that
// change the record store mark it mutated, which makes Close push a fresh
// store snapshot to the vault. Import commands additionally persist an
// import run and carry its ID.
type Operation struct {
	ID      int64
	Command string
	Status  string
	Mutated bool
}

// NewOperation creates a new in-memory operation.
func NewOperation(command string) *Operation {
	return &Operation{
		Command: command,
		Status:  photons.RunSuccess,
	}
}

// Persisted returns true if this operation has an import run in the store.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = photons.RunError
}
