package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/dRPC/rpc/common"
)

// NewGOBSerializer creates a serializer using Go's gob format. Every payload
// carries its own type description since each frame is decoded on its own.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializer{}
}

type gobSerializer struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (gobSerializer) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("gob: encode %s message: %w", msg.MsgType, err)
	}
	return buf.Bytes(), nil
}

// Deserialize replaces all of msg. gob skips zero fields on the wire, so
// decoding straight into msg would keep them from an earlier message.
func (gobSerializer) Deserialize(b []byte, msg *common.Message) error {
	var decoded common.Message
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&decoded); err != nil {
		return fmt.Errorf("gob: decode message: %w", err)
	}
	*msg = decoded
	return nil
}

func (gobSerializer) GetName() string {
	return "gob"
}
