package store

// CommandWriter sends a command that produces no reply to the instrument
type CommandWriter interface {
	Write(command string) error
	IsInterfaceNil() bool
}
