package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dRPC/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	[MsgType:1][flags:1]([len:4][Method])?([len:4][Body])?([len:4][Err])?
//
// All lengths are big-endian. Absent fields cost nothing.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasMethod byte = 1 << 0
	hasBody   byte = 1 << 1
	hasErr    byte = 1 << 2
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags byte = 0
	pos := 2 // Start after MsgType and flags

	// Handle Method
	if msg.Method != "" {
		flags |= hasMethod
		pos = putField(result, pos, []byte(msg.Method))
	}

	// Handle Body (an empty but non-nil body is kept)
	if msg.Body != nil {
		flags |= hasBody
		pos = putField(result, pos, msg.Body)
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		putField(result, pos, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	pos := 2

	// Read Method if present
	msg.Method = ""
	if flags&hasMethod != 0 {
		field, next, err := getField(data, pos, "method")
		if err != nil {
			return err
		}
		msg.Method = string(field)
		pos = next
	}

	// Read Body if present (copied, data may be reused by the caller)
	msg.Body = nil
	if flags&hasBody != 0 {
		field, next, err := getField(data, pos, "body")
		if err != nil {
			return err
		}
		msg.Body = make([]byte, len(field))
		copy(msg.Body, field)
		pos = next
	}

	// Read Err if present
	msg.Err = ""
	if flags&hasErr != 0 {
		field, _, err := getField(data, pos, "error")
		if err != nil {
			return err
		}
		msg.Err = string(field)
	}

	return nil
}

func (b binarySerializerImpl) GetName() string {
	return "binary"
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Method != "" {
		size += 4 + len(msg.Method)
	}
	if msg.Body != nil {
		size += 4 + len(msg.Body)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// putField writes a length prefixed field at pos and returns the next position
func putField(dst []byte, pos int, field []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(field)))
	pos += 4
	copy(dst[pos:pos+len(field)], field)
	return pos + len(field)
}

// getField reads a length prefixed field at pos. The returned slice aliases data.
func getField(data []byte, pos int, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if n < 0 || pos+n > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s data", name)
	}
	return data[pos : pos+n], pos + n, nil
}
