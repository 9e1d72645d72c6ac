/*
Package bind provides an in-process implementation of transport.ITransport.

All transports created from the same Network deliver requests to each other
through channels instead of sockets. The layers above the transport (the
dispatcher in rpc/server and the caller in rpc/client) can so be tested
without a network, including the failure cases a network produces:

	network := bind.NewNetwork()
	srv, _ := network.NewTransport("server-1")
	cli, _ := network.NewTransport("")

	network.AbortAfter(2) // the second RPC is delivered but never answered
	network.FailNext("link down") // the next ClientSend fails right away

A transport created with an empty endpoint can only send. Requests and
replies are copied on delivery and obey the same size limit
(tcp.MaxRPCLen) and the same finish-once rules as the TCP transport.
*/
package bind
