package protocol

import "github.com/google/uuid"

// BuildCommandRunRequest addresses argv to an agent. The reply goes to the
// response channel of source.Instance under a fresh correlation id. A
// timeoutMs of zero or less leaves the timeout to the agent.
func BuildCommandRunRequest(source Source, argv []string, dir string, env map[string]string, timeoutMs int) (*Message, error) {
	p := CommandRunRequestPayload{Argv: argv, Dir: dir, Env: env}
	if timeoutMs > 0 {
		p.TimeoutMs = &timeoutMs
	}
	msg, err := NewMessage(source, TypeCommandRunRequest, p)
	if err != nil {
		return nil, err
	}
	msg.Envelope.CorrelationID = uuid.NewString()
	msg.Envelope.ReplyTo = ResponseChannel(source.Instance)
	return msg, nil
}

// BuildCommandRunResponse answers req, echoing its correlation id.
func BuildCommandRunResponse(source Source, req *Message, payload CommandRunResponsePayload) (*Message, error) {
	msg, err := NewMessage(source, TypeCommandRunResponse, payload)
	if err != nil {
		return nil, err
	}
	msg.Envelope.CorrelationID = req.Envelope.CorrelationID
	return msg, nil
}
