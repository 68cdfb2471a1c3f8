package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type echoMessage struct {
	Message string `json:"message"`
}

func TestUnmarshal(t *testing.T) {
	req := &echoMessage{}
	jsonStr := "{\"message\":\"hello\"}"
	assert.NoError(t, Unmarshal([]byte(jsonStr), req))
	assert.Equal(t, "hello", req.Message)
}

func TestMarshal(t *testing.T) {
	req := &echoMessage{Message: "hello"}
	marshal, err := Marshal(req)
	assert.NoError(t, err)
	assert.Equal(t, "{\"message\":\"hello\"}", string(marshal))
}

func TestToByte(t *testing.T) {
	b, err := ToByte("already-a-string")
	assert.NoError(t, err)
	assert.Equal(t, "already-a-string", string(b))

	b, err = ToByte(echoMessage{Message: "hello"})
	assert.NoError(t, err)
	assert.Equal(t, "{\"message\":\"hello\"}", string(b))
}

func TestToJson(t *testing.T) {
	assert.Equal(t, "{\"message\":\"hello\"}", ToJson(echoMessage{Message: "hello"}))
}
