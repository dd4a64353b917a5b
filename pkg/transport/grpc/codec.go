package grpc

import "fmt"

// wireMessage is implemented by every request/response type in this
// package.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// codec is a grpc encoding.Codec (via ForceCodec/ForceServerCodec) for
// wireMessage values, bypassing protoc-generated types entirely while still
// running over google.golang.org/grpc's transport, framing, and stream
// multiplexing.
type codec struct{}

func (codec) Name() string { return "blockmgr-wire" }

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("grpc transport: codec: %T does not implement wireMessage", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("grpc transport: codec: %T does not implement wireMessage", v)
	}
	return m.Unmarshal(data)
}
