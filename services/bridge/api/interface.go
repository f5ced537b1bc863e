package api

import (
	"context"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
)

// VariableTable defines the shared value store served to clients
type VariableTable interface {
	Get(id string) (common.ChannelValue, error)
	Snapshot() []common.ChannelValue
	WriteRequest(id string, value int64) (bool, error)
	IsInterfaceNil() bool
}

// ChannelReader defines the component able to query a channel immediately
type ChannelReader interface {
	ReadNow(ctx context.Context, id string) (common.ChannelValue, error)
	IsInterfaceNil() bool
}
