package domain

import "github.com/google/uuid"

// IDGenerator supplies globally unique ids for new nodes, questions and
// pending operations. Only uniqueness is required.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.New().String() }

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NewID() string { return f() }
