package model

import (
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Branch is a branch owned by exactly one Repository.
type Branch struct {
	ID              types.EntityID
	RepositoryID    types.EntityID
	Name            types.BranchName
	HasUnmergedWork bool
	LastCommitRef   types.CommitSHA
	IsDefault       bool
	State           types.BranchState
	UpdatedAt       time.Time
}

func (x *Branch) IsTerminal() bool {
	return x.State == types.BranchDeleted
}

func (x *Branch) Copy() *Branch {
	if x == nil {
		return nil
	}
	c := *x
	return &c
}
