package channels

import "errors"

// ErrParse signals a malformed instrument reply
var ErrParse = errors.New("parse error")

// ErrDuplicateChannel signals two channel definitions sharing the same identifier
var ErrDuplicateChannel = errors.New("duplicate channel identifier")

// ErrInvalidChannel signals an inconsistent channel definition
var ErrInvalidChannel = errors.New("invalid channel definition")
