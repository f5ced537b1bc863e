package testsCommon

import "time"

// TransportStub -
type TransportStub struct {
	QueryHandler func(command string, timeout time.Duration) (string, error)
	WriteHandler func(command string) error
	CloseHandler func() error
}

// Query -
func (stub *TransportStub) Query(command string, timeout time.Duration) (string, error) {
	if stub.QueryHandler != nil {
		return stub.QueryHandler(command, timeout)
	}

	return "", nil
}

// Write -
func (stub *TransportStub) Write(command string) error {
	if stub.WriteHandler != nil {
		return stub.WriteHandler(command)
	}

	return nil
}

// Close -
func (stub *TransportStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *TransportStub) IsInterfaceNil() bool {
	return stub == nil
}
