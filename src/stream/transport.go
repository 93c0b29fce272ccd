package stream

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Receiver is the inbound half of a stream.
type Receiver interface {
	Recv() (proto.Message, error)
}

// BidiStream is a two-way stream carrying requests out and responses in.
type BidiStream interface {
	Receiver
	Send(proto.Message) error
	CloseSend() error
}

// NewMessage allocates an empty response.
type NewMessage func() (proto.Message, error)

// -----------------------------------------------------------------------------

type clientStream struct {
	grpc.ClientStream
	newResponse NewMessage
}

func (s *clientStream) Recv() (proto.Message, error) {
	resp, err := s.newResponse()
	if err != nil {
		return nil, err
	}
	if err := s.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *clientStream) Send(m proto.Message) error {
	return s.SendMsg(m)
}

// -----------------------------------------------------------------------------

// OpenServerStream starts a server-streaming call: one request out, responses in.
func OpenServerStream(ctx context.Context, conn grpc.ClientConnInterface, method string, req proto.Message, newResponse NewMessage) (Receiver, error) {
	cs, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, method)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &clientStream{ClientStream: cs, newResponse: newResponse}, nil
}

// OpenBidiStream starts a bidirectional call.
func OpenBidiStream(ctx context.Context, conn grpc.ClientConnInterface, method string, newResponse NewMessage) (BidiStream, error) {
	cs, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, method)
	if err != nil {
		return nil, err
	}
	return &clientStream{ClientStream: cs, newResponse: newResponse}, nil
}
