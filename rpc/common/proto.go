package common

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the envelope carried inside the payload of every frame.
// The transport never looks at it, method identification and errors are
// the business of the dispatcher and the client.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Method names the handler on the server (e.g. "echo")
	Method string `json:"method,omitempty"`

	// Body is the opaque argument (request) or result (reply)
	Body []byte `json:"body,omitempty"`

	// Err is empty if no error, otherwise contains the error message
	Err string `json:"err,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a new request for method
func NewRequest(method string, body []byte) *Message {
	return &Message{
		MsgType: MsgTRequest,
		Method:  method,
		Body:    body,
	}
}

// NewReply creates a new successful reply for method
func NewReply(method string, body []byte) *Message {
	return &Message{
		MsgType: MsgTReply,
		Method:  method,
		Body:    body,
	}
}

// NewErrorResponse creates a new error reply
func NewErrorResponse(method string, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Method:  method,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Types
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of the MessageType
func (t MessageType) String() string {
	switch t {
	case MsgTRequest:
		return "Request"
	case MsgTReply:
		return "Reply"
	case MsgTError:
		return "Error"
	default:
		return "Unknown"
	}
}

const (
	// MsgTRequest is sent by the client
	MsgTRequest MessageType = iota + 1
	// MsgTReply is a successful answer
	MsgTReply
	// MsgTError is an answer carrying an error in Err
	MsgTError
)
