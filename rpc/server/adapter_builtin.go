package server

import (
	"strings"
)

// NewBuiltinAdapter returns the methods every server offers:
//
//   - ping: replies "pong"
//   - echo: replies with the request body
//   - methods: replies with the registered method names, one per line
func NewBuiltinAdapter(s IRPCServer) IRPCServerAdapter {
	return &builtinAdapterImpl{server: s}
}

type builtinAdapterImpl struct {
	server IRPCServer
}

func (a *builtinAdapterImpl) Methods() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"ping":    a.ping,
		"echo":    a.echo,
		"methods": a.methods,
	}
}

func (a *builtinAdapterImpl) ping(_ string, _ []byte) ([]byte, error) {
	return []byte("pong"), nil
}

func (a *builtinAdapterImpl) echo(_ string, body []byte) ([]byte, error) {
	return body, nil
}

func (a *builtinAdapterImpl) methods(_ string, _ []byte) ([]byte, error) {
	return []byte(strings.Join(a.server.Methods(), "\n")), nil
}
