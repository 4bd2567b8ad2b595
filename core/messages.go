// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"
	"time"
)

// MessageType classifies a LogMessage.
type MessageType int

const (
	// MessageTypeInfo is an informational outcome.
	MessageTypeInfo MessageType = iota + 1
	// MessageTypeError is a failed outcome.
	MessageTypeError
	// MessageTypeWarning is a degraded but non-fatal outcome.
	MessageTypeWarning
)

// String returns the lowercase name of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageTypeInfo:
		return "info"
	case MessageTypeError:
		return "error"
	case MessageTypeWarning:
		return "warning"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t MessageType) MarshalText() ([]byte, error) {
	switch t {
	case MessageTypeInfo, MessageTypeError, MessageTypeWarning:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("%w: value %d", ErrInvalidMessageType, int(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *MessageType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "info":
		*t = MessageTypeInfo
	case "error":
		*t = MessageTypeError
	case "warning", "warn":
		*t = MessageTypeWarning
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMessageType, text)
	}
	return nil
}

// LogMessage is the outcome record of an administrative operation.
type LogMessage struct {
	Message   string      `json:"message"`
	CreatedOn time.Time   `json:"createdOn"`
	Type      MessageType `json:"messageType"`
}

func newMessage(t MessageType, format string, args ...any) LogMessage {
	return LogMessage{
		Message:   fmt.Sprintf(format, args...),
		CreatedOn: time.Now().UTC(),
		Type:      t,
	}
}

// Info creates an informational LogMessage.
func Info(format string, args ...any) LogMessage {
	return newMessage(MessageTypeInfo, format, args...)
}

// Warn creates a warning LogMessage.
func Warn(format string, args ...any) LogMessage {
	return newMessage(MessageTypeWarning, format, args...)
}

// Error creates an error LogMessage.
func Error(format string, args ...any) LogMessage {
	return newMessage(MessageTypeError, format, args...)
}

// Messages is the ordered list of outcomes produced by one operation.
type Messages []LogMessage

// HasErrors reports whether any message is an error.
func (m Messages) HasErrors() bool {
	for _, msg := range m {
		if msg.Type == MessageTypeError {
			return true
		}
	}
	return false
}

// String joins the messages one per line, prefixed with their type.
func (m Messages) String() string {
	var sb strings.Builder
	for i, msg := range m {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("[")
		sb.WriteString(msg.Type.String())
		sb.WriteString("] ")
		sb.WriteString(msg.Message)
	}
	return sb.String()
}
