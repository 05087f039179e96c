package protocol

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	namePattern    = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
	stationPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
	semverPattern  = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)
	channelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]*$`)
)

// routing lists the envelope fields each message type must carry.
var routing = map[string]struct{ correlation, replyTo bool }{
	TypeCommandRunRequest:  {correlation: true, replyTo: true},
	TypeCommandRunResponse: {correlation: true},
	TypeAgentHeartbeat:     {},
}

func isUUIDv4(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4 && id.String() == s
}

// Validate checks the envelope of msg. The payload is not inspected.
func Validate(msg *Message) error {
	env := msg.Envelope
	rule, known := routing[env.Type]

	switch {
	case !isUUIDv4(env.ID):
		return fmt.Errorf("invalid id: want a lowercase UUIDv4, got %q", env.ID)
	case env.Timestamp < 0:
		return fmt.Errorf("invalid timestamp %d", env.Timestamp)
	case !namePattern.MatchString(env.Source.Service):
		return fmt.Errorf("invalid source.service %q", env.Source.Service)
	case !stationPattern.MatchString(env.Source.Instance):
		return fmt.Errorf("invalid source.instance %q", env.Source.Instance)
	case !semverPattern.MatchString(env.Source.Version):
		return fmt.Errorf("invalid source.version %q: want MAJOR.MINOR.PATCH", env.Source.Version)
	case env.SchemaVersion != SchemaVersion:
		return fmt.Errorf("unsupported schema_version %q, want %q", env.SchemaVersion, SchemaVersion)
	case !known:
		return fmt.Errorf("invalid type %q", env.Type)
	}

	if env.CorrelationID == "" {
		if rule.correlation {
			return fmt.Errorf("missing correlation_id for %s", env.Type)
		}
	} else if !isUUIDv4(env.CorrelationID) {
		return fmt.Errorf("invalid correlation_id %q", env.CorrelationID)
	}
	if env.ReplyTo == "" {
		if rule.replyTo {
			return fmt.Errorf("missing reply_to for %s", env.Type)
		}
	} else if !channelPattern.MatchString(env.ReplyTo) {
		return fmt.Errorf("invalid reply_to %q", env.ReplyTo)
	}
	return nil
}

// ValidateCommandRunRequest validates a request message and returns its
// payload. The payload must name a command.
func ValidateCommandRunRequest(msg *Message) (*CommandRunRequestPayload, error) {
	if msg.Envelope.Type != TypeCommandRunRequest {
		return nil, fmt.Errorf("unexpected type %q", msg.Envelope.Type)
	}
	if err := Validate(msg); err != nil {
		return nil, err
	}
	p, err := ParseCommandRunRequest(msg)
	if err != nil {
		return nil, err
	}
	switch {
	case len(p.Argv) == 0 || p.Argv[0] == "":
		return nil, fmt.Errorf("invalid argv: command name required")
	case p.TimeoutMs != nil && *p.TimeoutMs < 0:
		return nil, fmt.Errorf("invalid timeout_ms %d", *p.TimeoutMs)
	}
	return p, nil
}
