package core

import (
	"errors"
	"strings"

	"gobus/protocol"
)

// CommandHandler decodes its own arguments from args and writes its
// response payload, if any, to reply
type CommandHandler func(args *[]byte, reply protocol.OutputBuffer) error

// Command represents one message id on the bridge
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "cs=%c data=%*s"
	Handler CommandHandler // nil for firmware -> host messages
}

// CommandRegistry maps message ids to handlers. Ids are dense and handed out
// in registration order, so lookup is an index. Registration happens before
// the bridge starts serving; the registry is not safe for concurrent Register.
type CommandRegistry struct {
	commands   []Command
	dictionary string
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{}
}

// Register adds a command and returns its id. Registering a name twice
// returns the existing id.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	if cmd, ok := r.GetCommandByName(name); ok {
		return cmd.ID
	}

	id := uint16(len(r.commands))
	r.commands = append(r.commands, Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.rebuildDictionary()
	return id
}

// RegisterResponse registers a message that only flows firmware -> host
func (r *CommandRegistry) RegisterResponse(name string, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return &r.commands[id], true
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	for i := range r.commands {
		if r.commands[i].Name == name {
			return &r.commands[i], true
		}
	}
	return nil, false
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, args *[]byte, reply protocol.OutputBuffer) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok {
		return errors.New("unknown command ID: " + itoa(int(cmdID)))
	}
	if cmd.Handler == nil {
		return errors.New("not a command: " + cmd.Name)
	}
	return cmd.Handler(args, reply)
}

// GetDictionary returns one "id name format" line per message
func (r *CommandRegistry) GetDictionary() string {
	return r.dictionary
}

func (r *CommandRegistry) rebuildDictionary() {
	var sb strings.Builder
	for _, cmd := range r.commands {
		sb.WriteString(itoa(int(cmd.ID)))
		sb.WriteByte(' ')
		sb.WriteString(cmd.Name)
		if cmd.Format != "" {
			sb.WriteByte(' ')
			sb.WriteString(cmd.Format)
		}
		sb.WriteByte('\n')
	}
	r.dictionary = sb.String()
}
