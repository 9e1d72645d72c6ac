package client

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// RemoteError is an error the server reported in an error envelope
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("remote error: %s", e.Message)
	}
	return fmt.Sprintf("remote error in %s: %s", e.Method, e.Message)
}

// deliveryError marks a failure that happened before the request left this
// process completely. Only those are safe to retry.
type deliveryError struct {
	err error
}

func (e *deliveryError) Error() string { return e.err.Error() }
func (e *deliveryError) Unwrap() error { return e.err }

// invokeRPCRequest is the helper used for every call: one attempt, no retries.
// It serializes req, sends it to endpoint, waits for the reply and checks that
// the reply is a successful answer to req. Failures to deliver the request are
// returned as *deliveryError.
func invokeRPCRequest(endpoint string, req *common.Message, t transport.ITransport, s serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := s.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}

	// Send the request
	rpc, err := t.ClientSend(endpoint, reqBytes)
	if err != nil {
		if errors.Is(err, transport.ErrFrameTooLarge) {
			return nil, err
		}
		return nil, &deliveryError{err: err}
	}

	// Wait for the reply, the request may have been executed from here on
	respBytes, err := rpc.GetReply()
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := s.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("failed to deserialize reply from %s: %w", endpoint, err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, &RemoteError{Method: resp.Method, Message: resp.Err}
	}

	// Check if the response answers the request
	if resp.MsgType != common.MsgTReply {
		return nil, fmt.Errorf("unexpected message type %s from %s, expected %s", resp.MsgType, endpoint, common.MsgTReply)
	}
	if resp.Method != req.Method {
		return nil, fmt.Errorf("reply for method %q from %s, expected %q", resp.Method, endpoint, req.Method)
	}

	return resp, nil
}
