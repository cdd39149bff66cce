// Package wire defines the JSON frames exchanged with the chat backend over
// the persistent socket: the four outbound commands and the inbound event
// union.
package wire

import (
	"encoding/json"
	"fmt"
)

// CommandType tags an outbound frame.
type CommandType string

const (
	CommandChat         CommandType = "chat"
	CommandSetContext   CommandType = "set_context"
	CommandSwitchModel  CommandType = "switch_model"
	CommandClearContext CommandType = "clear_context"
)

// FileRef is a file attached to the conversation context, as sent to the backend.
type FileRef struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Command is a user intent waiting to be stamped and transmitted.
type Command struct {
	Type    CommandType
	Content string    // chat
	Files   []FileRef // set_context
	Model   string    // switch_model
}

// Chat builds a chat command.
func Chat(content string) Command {
	return Command{Type: CommandChat, Content: content}
}

// SetContext builds a set_context command.
func SetContext(files []FileRef) Command {
	return Command{Type: CommandSetContext, Files: files}
}

// SwitchModel builds a switch_model command.
func SwitchModel(model string) Command {
	return Command{Type: CommandSwitchModel, Model: model}
}

// ClearContext builds a clear_context command.
func ClearContext() Command {
	return Command{Type: CommandClearContext}
}

type chatData struct {
	Content string `json:"content"`
}

type setContextData struct {
	Files []FileRef `json:"files"`
}

type switchModelData struct {
	Model string `json:"model"`
}

type outboundFrame struct {
	Type   CommandType `json:"type"`
	Data   any         `json:"data,omitempty"`
	UserID string      `json:"user_id"`
}

// Encode serializes cmd and stamps it with the client identity.
func Encode(cmd Command, clientID string) ([]byte, error) {
	frame := outboundFrame{Type: cmd.Type, UserID: clientID}
	switch cmd.Type {
	case CommandChat:
		frame.Data = chatData{Content: cmd.Content}
	case CommandSetContext:
		files := cmd.Files
		if files == nil {
			files = []FileRef{}
		}
		frame.Data = setContextData{Files: files}
	case CommandSwitchModel:
		frame.Data = switchModelData{Model: cmd.Model}
	case CommandClearContext:
		// no payload
	default:
		return nil, fmt.Errorf("unknown command type %q", cmd.Type)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s command: %w", cmd.Type, err)
	}
	return data, nil
}
