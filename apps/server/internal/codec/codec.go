// Package codec frames live-play messages as protobuf Struct envelopes.
//
// Every frame is a google.protobuf.Struct with the fields
//
//	type        message kind ("move", "state", "error", ...)
//	session_id  the game session the frame refers to
//	seq         server sequence number (server frames only)
//	ts_ms       server timestamp in milliseconds (server frames only)
//	payload     message body
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrMissingType = errors.New("envelope has no type")

// Message is a decoded envelope.
type Message struct {
	Type      string
	SessionID string
	Seq       uint64
	TsMs      int64
	Payload   map[string]any
}

// Bind decodes the payload into dst through its JSON tags.
func (m Message) Bind(dst any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	raw, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Encode builds a client frame.
func Encode(typ, sessionID string, payload any) ([]byte, error) {
	return encode(typ, sessionID, 0, 0, payload)
}

// EncodeServer builds a server frame stamped with seq and the current time.
func EncodeServer(typ, sessionID string, seq uint64, payload any) ([]byte, error) {
	return encode(typ, sessionID, seq, time.Now().UnixMilli(), payload)
}

func encode(typ, sessionID string, seq uint64, ts int64, payload any) ([]byte, error) {
	body, err := toMap(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	fields := map[string]any{
		"type":       typ,
		"session_id": sessionID,
		"payload":    body,
	}
	if seq > 0 {
		fields["seq"] = float64(seq)
		fields["ts_ms"] = float64(ts)
	}
	env, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", typ, err)
	}
	return proto.Marshal(env)
}

// Decode parses a frame.
func Decode(data []byte) (Message, error) {
	var env structpb.Struct
	if err := proto.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	f := env.GetFields()
	msg := Message{
		Type:      f["type"].GetStringValue(),
		SessionID: f["session_id"].GetStringValue(),
		Seq:       uint64(f["seq"].GetNumberValue()),
		TsMs:      int64(f["ts_ms"].GetNumberValue()),
	}
	if p := f["payload"].GetStructValue(); p != nil {
		msg.Payload = p.AsMap()
	}
	if msg.Type == "" {
		return msg, ErrMissingType
	}
	return msg, nil
}

// toMap normalises any JSON-encodable value into the shapes structpb accepts.
func toMap(v any) (map[string]any, error) {
	switch p := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return p, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload must encode to a JSON object: %w", err)
	}
	return out, nil
}
