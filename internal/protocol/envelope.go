// Package protocol defines the JSON messages exchanged between a script run
// and a remote command agent over Redis Pub/Sub.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message type constants.
const (
	TypeCommandRunRequest  = "command.run.request"
	TypeCommandRunResponse = "command.run.response"
	TypeAgentHeartbeat     = "agent.heartbeat"
)

// SchemaVersion is the current protocol version.
const SchemaVersion = "v1.0.0"

// Channel names.
const (
	CommandChannelPrefix  = "commands:"
	ResponseChannelPrefix = "responses:"
	HeartbeatChannel      = "events:heartbeat"
)

// CommandChannel returns the channel an agent for station listens on.
func CommandChannel(station string) string { return CommandChannelPrefix + station }

// ResponseChannel returns the channel responses for instance arrive on.
func ResponseChannel(instance string) string { return ResponseChannelPrefix + instance }

// Message is the top-level protocol message containing an envelope and payload.
type Message struct {
	Envelope Envelope        `json:"envelope"`
	Payload  json.RawMessage `json:"payload"`
}

// Envelope contains message metadata and routing information.
type Envelope struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Source        Source `json:"source"`
	SchemaVersion string `json:"schema_version"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ReplyTo       string `json:"reply_to,omitempty"`
}

// Source identifies who sent a message.
type Source struct {
	Service  string `json:"service"`
	Instance string `json:"instance"`
	Version  string `json:"version"`
}

// Error is a standard error object used in response payloads.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes reported by agents.
const (
	ErrCodeLaunchFailed = "LAUNCH_FAILED"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeTimeout      = "TIMEOUT"
)

// CommandRunRequestPayload asks an agent to run one external command.
type CommandRunRequestPayload struct {
	Argv      []string          `json:"argv"`
	Dir       string            `json:"dir,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	TimeoutMs *int              `json:"timeout_ms,omitempty"`
}

// CommandRunResponsePayload carries the outcome of a command. ExitCode is -1
// when the process could not be started; Error then describes why.
type CommandRunResponsePayload struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs *int   `json:"duration_ms,omitempty"`
	Error      *Error `json:"error,omitempty"`
}

// HeartbeatPayload is published periodically by a running agent.
type HeartbeatPayload struct {
	Status            string  `json:"status"`
	Station           string  `json:"station"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	CommandsProcessed int     `json:"commands_processed"`
	CommandsFailed    int     `json:"commands_failed"`
	LastError         *string `json:"last_error"`
}

// NewEnvelope stamps a fresh id and the current Unix time.
func NewEnvelope(source Source, msgType string) Envelope {
	return Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().Unix(),
		Source:        source,
		SchemaVersion: SchemaVersion,
		Type:          msgType,
	}
}

// NewMessage wraps payload, encoded as JSON, in a new envelope.
func NewMessage(source Source, msgType string, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return &Message{Envelope: NewEnvelope(source, msgType), Payload: raw}, nil
}

// Parse decodes a message. The envelope is not validated.
func Parse(data []byte) (*Message, error) {
	msg := new(Message)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return msg, nil
}

func decodePayload[T any](msg *Message, what string) (*T, error) {
	p := new(T)
	if err := json.Unmarshal(msg.Payload, p); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", what, err)
	}
	return p, nil
}

// ParseCommandRunRequest decodes the payload of a command.run.request.
func ParseCommandRunRequest(msg *Message) (*CommandRunRequestPayload, error) {
	return decodePayload[CommandRunRequestPayload](msg, "command run request")
}

// ParseCommandRunResponse decodes the payload of a command.run.response.
func ParseCommandRunResponse(msg *Message) (*CommandRunResponsePayload, error) {
	return decodePayload[CommandRunResponsePayload](msg, "command run response")
}

// ParseHeartbeat decodes the payload of an agent.heartbeat.
func ParseHeartbeat(msg *Message) (*HeartbeatPayload, error) {
	return decodePayload[HeartbeatPayload](msg, "heartbeat")
}
