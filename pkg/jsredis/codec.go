package jsredis

import (
	"encoding/base64"
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Codec turns values into the bytes stored in the backend and back.
// Marshal must be deterministic for a given value: member tokens are derived
// from its output, so two encodings of the same member must be identical.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// StdCodec encodes with encoding/json. Struct fields keep declaration order
// and map keys are sorted, so output is stable for a given Go type.
type StdCodec struct{}

func (StdCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (StdCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// GoccyCodec encodes with github.com/goccy/go-json. Its output matches
// encoding/json, including sorted map keys.
type GoccyCodec struct{}

func (GoccyCodec) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoccyCodec) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// CodecByName returns the codec registered under name ("std" or "goccy")
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "", "std", "json":
		return StdCodec{}, true
	case "goccy":
		return GoccyCodec{}, true
	default:
		return nil, false
	}
}

// Token returns the member token for member: the standard, padded base64
// encoding of its JSON form. The token is the raw element stored in the set.
func Token(codec Codec, member any) (string, error) {
	data, err := codec.Marshal(member)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ShadowKey returns the key of the shadow expiration record for token in setKey
func ShadowKey(setKey, token string) string {
	return "exp::" + setKey + "::" + token
}
