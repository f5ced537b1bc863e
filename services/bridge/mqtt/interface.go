package mqtt

import (
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// WriteRequester defines the component accepting writes on behalf of remote clients
type WriteRequester interface {
	WriteRequest(id string, value int64) (bool, error)
	IsInterfaceNil() bool
}

// brokerClient is the subset of the paho client used by the bridge
type brokerClient interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	IsConnected() bool
}
