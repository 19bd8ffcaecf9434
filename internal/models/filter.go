package models

import "github.com/google/uuid"

// ListOptions narrows a list query. Zero values mean "no predicate".
type ListOptions struct {
	Published *bool
	Featured  *bool
	Active    *bool
	Category  *uuid.UUID
	Author    *uuid.UUID
	Type      string
	DateFrom  *Date
	DateTo    *Date
	Limit     int
}

// Bool returns a pointer to b, for building options.
func Bool(b bool) *bool { return &b }

// Equal reports whether two option sets select the same rows.
func (o ListOptions) Equal(other ListOptions) bool {
	return eqBool(o.Published, other.Published) &&
		eqBool(o.Featured, other.Featured) &&
		eqBool(o.Active, other.Active) &&
		eqUUID(o.Category, other.Category) &&
		eqUUID(o.Author, other.Author) &&
		o.Type == other.Type &&
		eqDate(o.DateFrom, other.DateFrom) &&
		eqDate(o.DateTo, other.DateTo) &&
		o.Limit == other.Limit
}

func eqBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqDate(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func matchBool(want *bool, got bool) bool {
	return want == nil || *want == got
}

func matchUUID(want *uuid.UUID, got *uuid.UUID) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

func matchDate(opts ListOptions, d Date) bool {
	if opts.DateFrom != nil && d.Before(*opts.DateFrom) {
		return false
	}
	if opts.DateTo != nil && opts.DateTo.Before(d) {
		return false
	}
	return true
}
