package models

import (
	"errors"
	"fmt"
)

type OwnerKind int

const (
	OwnerNone OwnerKind = iota
	OwnerUser
	OwnerSchool
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerUser:
		return "user"
	case OwnerSchool:
		return "school"
	}
	return "none"
}

var ErrInvalidOwner = errors.New("subscription owner must be exactly one of user or school")

// Owner is either User(id) or School(id). The zero value is no owner.
type Owner struct {
	kind OwnerKind
	id   string
}

func UserOwner(id string) Owner {
	return Owner{kind: OwnerUser, id: id}
}

func SchoolOwner(id string) Owner {
	return Owner{kind: OwnerSchool, id: id}
}

// OwnerFromColumns rebuilds an Owner from the two nullable storage columns.
func OwnerFromColumns(userID, schoolID *string) (Owner, error) {
	hasUser := userID != nil && *userID != ""
	hasSchool := schoolID != nil && *schoolID != ""

	switch {
	case hasUser && hasSchool:
		return Owner{}, fmt.Errorf("%w: both user_id and school_id set", ErrInvalidOwner)
	case hasUser:
		return UserOwner(*userID), nil
	case hasSchool:
		return SchoolOwner(*schoolID), nil
	}
	return Owner{}, fmt.Errorf("%w: neither user_id nor school_id set", ErrInvalidOwner)
}

func (o Owner) Kind() OwnerKind { return o.kind }
func (o Owner) ID() string      { return o.id }

func (o Owner) IsZero() bool {
	return o.kind == OwnerNone || o.id == ""
}

// Columns returns the storage representation: exactly one pointer is non-nil.
func (o Owner) Columns() (userID, schoolID *string) {
	id := o.id
	switch o.kind {
	case OwnerUser:
		return &id, nil
	case OwnerSchool:
		return nil, &id
	}
	return nil, nil
}

func (o Owner) String() string {
	if o.IsZero() {
		return "none"
	}
	return o.kind.String() + ":" + o.id
}
