package index

import "errors"

// ErrInvalidAddress is returned when text does not parse as an IP
// address or CIDR network.
var ErrInvalidAddress = errors.New("invalid address")

// ErrMalformedRecord is returned when a record from the bulk table
// cannot be used; it aborts the entire build.
var ErrMalformedRecord = errors.New("malformed record")
