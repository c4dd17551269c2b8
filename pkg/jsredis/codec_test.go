package jsredis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

func TestToken(t *testing.T) {
	token, err := Token(StdCodec{}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "ImFsaWNlIg==", token)

	token, err = Token(StdCodec{}, 42)
	require.NoError(t, err)
	assert.Equal(t, "NDI=", token)
}

func TestShadowKey(t *testing.T) {
	assert.Equal(t, "exp::allow-list::ImFsaWNlIg==", ShadowKey("allow-list", "ImFsaWNlIg=="))
}

func TestTokenIsDeterministic(t *testing.T) {
	codecs := map[string]Codec{"std": StdCodec{}, "goccy": GoccyCodec{}}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			a := map[string]any{"b": 2, "a": 1, "c": []int{3}}
			b := map[string]any{"c": []int{3}, "a": 1, "b": 2}

			ta, err := Token(codec, a)
			require.NoError(t, err)
			tb, err := Token(codec, b)
			require.NoError(t, err)
			assert.Equal(t, ta, tb)
		})
	}
}

func TestCodecsAgree(t *testing.T) {
	members := []any{
		"alice",
		42,
		3.25,
		true,
		account{ID: 7, Email: "a@example.com"},
		map[string]any{"z": "last", "a": "first"},
	}

	for _, member := range members {
		std, err := Token(StdCodec{}, member)
		require.NoError(t, err)
		goccy, err := Token(GoccyCodec{}, member)
		require.NoError(t, err)
		assert.Equal(t, std, goccy, "member %#v", member)
	}
}

func TestCodecByName(t *testing.T) {
	codec, ok := CodecByName("goccy")
	require.True(t, ok)
	assert.IsType(t, GoccyCodec{}, codec)

	codec, ok = CodecByName("")
	require.True(t, ok)
	assert.IsType(t, StdCodec{}, codec)

	_, ok = CodecByName("xml")
	assert.False(t, ok)
}
