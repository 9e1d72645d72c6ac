package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dRPC/rpc/common"
)

// NewJSONSerializer creates a serializer writing the envelope as one JSON
// object. The body is base64 encoded, empty fields are left out.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializer{}
}

type jsonSerializer struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializer) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json: encode %s message: %w", msg.MsgType, err)
	}
	return data, nil
}

// Deserialize replaces all of msg. Fields left out of b are zero afterwards
// instead of keeping the value of an earlier message.
func (jsonSerializer) Deserialize(b []byte, msg *common.Message) error {
	var decoded common.Message
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("json: decode message: %w", err)
	}
	*msg = decoded
	return nil
}

func (jsonSerializer) GetName() string {
	return "json"
}
