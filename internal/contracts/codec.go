package contracts

import (
	"encoding"
	"fmt"
	"sync"
)

// StateDecoder decodes the payload of a state governed by one contract.
type StateDecoder func(data []byte) (ContractState, error)

// CommandDecoder decodes the payload of one command type.
type CommandDecoder func(data []byte) (CommandData, error)

// Codecs maps contract ids and command types to their decoders.
// States and commands encode themselves through encoding.BinaryMarshaler.
// It is safe for concurrent access.
type Codecs struct {
	mu       sync.RWMutex
	states   map[ContractID]StateDecoder
	commands map[CommandType]CommandDecoder
}

// NewCodecs creates a codec set with the built-in timestamp command registered.
func NewCodecs() *Codecs {
	c := &Codecs{
		states:   make(map[ContractID]StateDecoder),
		commands: make(map[CommandType]CommandDecoder),
	}

	c.RegisterCommand(TimestampCommandType, decodeTimestampCommand)

	return c
}

// RegisterState binds the decoder for states of contract id.
func (c *Codecs) RegisterState(id ContractID, dec StateDecoder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[id] = dec
}

// RegisterCommand binds the decoder for commands of type t.
func (c *Codecs) RegisterCommand(t CommandType, dec CommandDecoder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands[t] = dec
}

// EncodeState marshals s.
func (c *Codecs) EncodeState(s ContractState) ([]byte, error) {
	m, ok := s.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("state %T does not implement encoding.BinaryMarshaler", s)
	}

	return m.MarshalBinary()
}

// DecodeState unmarshals a state of contract id.
func (c *Codecs) DecodeState(id ContractID, data []byte) (ContractState, error) {
	c.mu.RLock()
	dec, ok := c.states[id]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: state of contract %s", ErrNoCodec, id)
	}

	return dec(data)
}

// EncodeCommand marshals cmd.
func (c *Codecs) EncodeCommand(cmd CommandData) ([]byte, error) {
	m, ok := cmd.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("command %T does not implement encoding.BinaryMarshaler", cmd)
	}

	return m.MarshalBinary()
}

// DecodeCommand unmarshals a command of type t.
func (c *Codecs) DecodeCommand(t CommandType, data []byte) (CommandData, error) {
	c.mu.RLock()
	dec, ok := c.commands[t]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: command %s", ErrNoCodec, t)
	}

	return dec(data)
}
