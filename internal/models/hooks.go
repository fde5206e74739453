package models

import (
	"encoding/json"
	"fmt"
)

// Hook is a serializable description of an action a watcher fires when its
// target goes live. Hooks are pure data here; the watch layer binds them to
// executable callbacks at registration time.
type Hook interface {
	// Tag returns the stable type tag used for persistence.
	Tag() string
}

// AddToCapturedStreams records the live stream under a text channel's
// captured set, so bare clip commands in that channel can find it.
type AddToCapturedStreams struct {
	Name string `json:"name"`
	Key  uint64 `json:"key"`
}

func (AddToCapturedStreams) Tag() string { return "add_to_captured" }

// SendEnabledMsg notifies a text channel that clipping is enabled for the
// stream that just went live.
type SendEnabledMsg struct {
	ChannelID uint64 `json:"channel_id"`
}

func (SendEnabledMsg) Tag() string { return "send_enabled_msg" }

// hookEnvelope is the persisted form: a type tag plus the variant's fields.
type hookEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeHooks serializes a hook tuple for persistence.
func EncodeHooks(hooks []Hook) ([]byte, error) {
	envelopes := make([]hookEnvelope, 0, len(hooks))
	for _, h := range hooks {
		data, err := json.Marshal(h)
		if err != nil {
			return nil, fmt.Errorf("encoding hook %s: %w", h.Tag(), err)
		}
		envelopes = append(envelopes, hookEnvelope{Type: h.Tag(), Data: data})
	}
	return json.Marshal(envelopes)
}

// DecodeHooks deserializes a hook tuple. Unknown tags are an error: they
// mean the persisted state came from a newer build.
func DecodeHooks(b []byte) ([]Hook, error) {
	var envelopes []hookEnvelope
	if err := json.Unmarshal(b, &envelopes); err != nil {
		return nil, fmt.Errorf("decoding hooks: %w", err)
	}

	hooks := make([]Hook, 0, len(envelopes))
	for _, env := range envelopes {
		var h Hook
		switch env.Type {
		case AddToCapturedStreams{}.Tag():
			var v AddToCapturedStreams
			if err := json.Unmarshal(env.Data, &v); err != nil {
				return nil, fmt.Errorf("decoding hook %s: %w", env.Type, err)
			}
			h = v
		case SendEnabledMsg{}.Tag():
			var v SendEnabledMsg
			if err := json.Unmarshal(env.Data, &v); err != nil {
				return nil, fmt.Errorf("decoding hook %s: %w", env.Type, err)
			}
			h = v
		default:
			return nil, fmt.Errorf("unknown hook type %q", env.Type)
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}
