// Package serializer turns the common.Message envelope into the opaque payload
// of one transport frame and back. The transport never looks inside a payload;
// the method name, the argument or result and the error text all travel in
// the envelope.
//
// Implementations:
//
//   - binarySerializerImpl: Custom binary format optimized for speed and space.
//     A flag byte marks which optional fields are present, absent fields cost
//     nothing. Recommended for production use.
//
//   - jsonSerializer: JSON encoding, human readable and useful for
//     debugging or talking to non-Go peers.
//
//   - gobSerializer: Go's gob encoding. Larger and slower than the other
//     two, kept for compatibility.
//
// All serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewRequest("echo", []byte("hi")))
//	// ... send data ...
//	var msg common.Message
//	err = s.Deserialize(receivedData, &msg)
package serializer
