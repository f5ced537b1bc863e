package common

import (
	"strconv"
	"time"
)

// ValueKind defines how a channel payload is interpreted
type ValueKind int

const (
	// KindString is a free text value, e.g. the identification string
	KindString ValueKind = iota
	// KindScalar is a floating point measurement
	KindScalar
	// KindFlag is an integer status or control flag
	KindFlag
)

// String returns the human-readable kind name
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindScalar:
		return "scalar"
	case KindFlag:
		return "integer-flag"
	default:
		return "unknown"
	}
}

// Value is a tagged union holding the payload of a channel
type Value struct {
	Kind  ValueKind
	Str   string
	Float float64
	Int   int64
}

// StringValue creates a string value
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// ScalarValue creates a floating point value
func ScalarValue(f float64) Value {
	return Value{Kind: KindScalar, Float: f}
}

// FlagValue creates an integer value
func FlagValue(i int64) Value {
	return Value{Kind: KindFlag, Int: i}
}

// String formats the payload the way it is written on the wire
func (v Value) String() string {
	switch v.Kind {
	case KindScalar:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindFlag:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Str
	}
}

// Interface returns the payload as a plain Go value, used for JSON encoding
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindScalar:
		return v.Float
	case KindFlag:
		return v.Int
	default:
		return v.Str
	}
}

// ChannelValue is the current state of a channel as held by the variable table
type ChannelValue struct {
	ID         string
	Value      Value
	UpdatedAt  time.Time
	LastError  string
	Stale      bool
	ErrorCount uint64
}

// ValueEvent is emitted after each successful channel update
type ValueEvent struct {
	ID        string
	Value     Value
	Timestamp time.Time
}
