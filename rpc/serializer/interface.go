package serializer

import "github.com/ValentinKolb/dRPC/rpc/common"

// IRPCSerializer is the interface for all envelope serializers. It turns a
// Message into the opaque payload of one frame and back.
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
	// GetName returns the name used to select the serializer (e.g. "json")
	GetName() string
}
