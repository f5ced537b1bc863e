package channels

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

// ParseRule selects how a raw instrument reply becomes a typed value
type ParseRule int

const (
	// RulePassThrough keeps the reply as text, trimmed of trailing whitespace
	RulePassThrough ParseRule = iota
	// RuleNumericPrefix parses the numeric token found before the first letter (e.g. "12.345V")
	RuleNumericPrefix
	// RuleFlagAt parses the single character found at FlagOffset as an integer
	RuleFlagAt
)

// ChannelSpec describes one monitored or controllable quantity. It is immutable after startup.
type ChannelSpec struct {
	ID            string
	Query         string
	Kind          common.ValueKind
	Rule          ParseRule
	Unit          string
	Precision     int
	ScanPeriod    time.Duration
	FlagOffset    int
	Metric        bool
	WriteCommand  string
	AllowedValues []int64
}

// OnDemand returns true if the channel is only read when a client asks for it
func (spec ChannelSpec) OnDemand() bool {
	return spec.ScanPeriod <= 0
}

// Writable returns true if the channel accepts write requests
func (spec ChannelSpec) Writable() bool {
	return len(spec.WriteCommand) > 0
}

// Parse converts the raw reply into a value according to the channel's parse rule
func (spec ChannelSpec) Parse(reply string) (common.Value, error) {
	switch spec.Rule {
	case RuleNumericPrefix:
		f, err := ParseNumericPrefix(reply)
		if err != nil {
			return common.Value{}, err
		}

		return common.ScalarValue(f), nil
	case RuleFlagAt:
		i, err := ParseFlagAt(reply, spec.FlagOffset)
		if err != nil {
			return common.Value{}, err
		}

		return common.FlagValue(i), nil
	default:
		return common.StringValue(strings.TrimRight(reply, " \t\r\n")), nil
	}
}

// Validate checks that the requested write value is one of the allowed discrete states
func (spec ChannelSpec) Validate(value int64) bool {
	for _, allowed := range spec.AllowedValues {
		if allowed == value {
			return true
		}
	}

	return false
}

// FormatWrite builds the instrument command for the provided value
func (spec ChannelSpec) FormatWrite(value int64) string {
	return fmt.Sprintf(spec.WriteCommand, value)
}

// ParseNumericPrefix splits the reply at the first ASCII letter and parses what comes before it
func ParseNumericPrefix(reply string) (float64, error) {
	prefix := reply
	for i := 0; i < len(reply); i++ {
		if isASCIILetter(reply[i]) {
			prefix = reply[:i]
			break
		}
	}

	prefix = strings.TrimSpace(prefix)
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: no numeric prefix in reply %q", ErrParse, reply)
	}

	return f, nil
}

// ParseFlagAt reads the character at the provided offset of the reply as an integer
func ParseFlagAt(reply string, offset int) (int64, error) {
	trimmed := strings.TrimSpace(reply)
	if offset < 0 || offset >= len(trimmed) {
		return 0, fmt.Errorf("%w: reply %q too short for flag offset %d", ErrParse, reply, offset)
	}

	i, err := strconv.ParseInt(trimmed[offset:offset+1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric flag at offset %d in reply %q", ErrParse, offset, reply)
	}

	return i, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
