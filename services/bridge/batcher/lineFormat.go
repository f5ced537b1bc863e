package batcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

const (
	measurement     = "psu"
	idSeparator     = ":"
	tagEscapedChars = ", ="
)

var errNoChannelNumber = errors.New("identifier carries no channel number")

// FormatLine renders the event as psu,host=<host>,channel=<n>,metric=<name> value=<v> <timestamp_ns>
func FormatLine(host string, event common.ValueEvent) (string, error) {
	channel, metric, err := splitIdentifier(event.ID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s,host=%s,channel=%s,metric=%s value=%s %d",
		measurement,
		escapeTag(host),
		channel,
		escapeTag(metric),
		event.Value.String(),
		event.Timestamp.UnixNano(),
	), nil
}

// splitIdentifier extracts the channel number (digits of the segment before the last separator) and the
// lower-cased metric name (segment after the last separator), e.g. CH2:CURRENT -> 2, current
func splitIdentifier(id string) (string, string, error) {
	idx := strings.LastIndex(id, idSeparator)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %s", errNoChannelNumber, id)
	}

	metric := strings.ToLower(id[idx+1:])
	head := id[:idx]
	if prev := strings.LastIndex(head, idSeparator); prev >= 0 {
		head = head[prev+1:]
	}

	channel := firstDigitRun(head)
	if len(channel) == 0 || len(metric) == 0 {
		return "", "", fmt.Errorf("%w: %s", errNoChannelNumber, id)
	}

	return channel, metric, nil
}

func firstDigitRun(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		isDigit := s[i] >= '0' && s[i] <= '9'
		if isDigit && start < 0 {
			start = i
		}
		if !isDigit && start >= 0 {
			return s[start:i]
		}
	}
	if start < 0 {
		return ""
	}

	return s[start:]
}

func escapeTag(value string) string {
	if !strings.ContainsAny(value, tagEscapedChars) {
		return value
	}

	var sb strings.Builder
	for _, r := range value {
		if strings.ContainsRune(tagEscapedChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}

	return sb.String()
}
