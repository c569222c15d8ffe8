package transport

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC full-service name peers dial. It stands in for
// the package.Service name a .proto file would declare.
const ServiceName = "chord.DHT"

// DHTServer is implemented by whatever serves the peer-to-peer Chord RPCs
// (internal/server.Handler). It is the HandlerType bound to DHT_ServiceDesc
// below, exactly as a generated <Service>Server interface would be.
type DHTServer interface {
	FindSuccessor(context.Context, *HashPos) (*FindSuccessorReply, error)
	GetPredecessor(context.Context, *Empty) (*GetPredecessorReply, error)
	GetSuccessorList(context.Context, *Empty) (*SuccessorListReply, error)
	FindClosestPrecedingFinger(context.Context, *HashPos) (*FingerEntry, error)

	FixFingers(context.Context, *Empty) (*Empty, error)
	Stabilize(context.Context, *Empty) (*Empty, error)
	Health(context.Context, *Empty) (*Empty, error)
	Notify(*NotifyRequest, NotifyServerStream) error
	Handoff(HandoffServerStream) error

	Get(context.Context, *GetRequest) (*GetReply, error)
	Put(context.Context, *PutRequest) (*Empty, error)

	GetNodeSummary(context.Context, *Empty) (*NodeSummary, error)
	GetKvStoreSize(context.Context, *Empty) (*KvStoreSizeReply, error)
	GetKvStoreData(context.Context, *Empty) (*KvStoreDataReply, error)
}

// NotifyServerStream is the server side of the Notify server-streaming RPC:
// one NotifyRequest in, a stream of KvPair out.
type NotifyServerStream interface {
	Send(*KvPair) error
	grpc.ServerStream
}

type notifyServerStream struct{ grpc.ServerStream }

func (x *notifyServerStream) Send(m *KvPair) error { return x.ServerStream.SendMsg(m) }

// HandoffServerStream is the server side of the Handoff client-streaming
// RPC: a stream of KvPair in, a single Empty response out.
type HandoffServerStream interface {
	Recv() (*KvPair, error)
	SendAndClose(*Empty) error
	grpc.ServerStream
}

type handoffServerStream struct{ grpc.ServerStream }

func (x *handoffServerStream) Recv() (*KvPair, error) {
	m := new(KvPair)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *handoffServerStream) SendAndClose(m *Empty) error {
	return x.ServerStream.SendMsg(m)
}

func unaryHandler[Req any, Resp any](call func(DHTServer, context.Context, *Req) (*Resp, error), method string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DHTServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DHTServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _DHT_Notify_Handler(srv any, stream grpc.ServerStream) error {
	m := new(NotifyRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DHTServer).Notify(m, &notifyServerStream{stream})
}

func _DHT_Handoff_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(DHTServer).Handoff(&handoffServerStream{stream})
}

// DHT_ServiceDesc plays the role protoc-gen-go-grpc would otherwise
// generate from a chord.proto service definition.
var DHT_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DHTServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FindSuccessor", Handler: unaryHandler((DHTServer).FindSuccessor, "FindSuccessor")},
		{MethodName: "GetPredecessor", Handler: unaryHandler((DHTServer).GetPredecessor, "GetPredecessor")},
		{MethodName: "GetSuccessorList", Handler: unaryHandler((DHTServer).GetSuccessorList, "GetSuccessorList")},
		{MethodName: "FindClosestPrecedingFinger", Handler: unaryHandler((DHTServer).FindClosestPrecedingFinger, "FindClosestPrecedingFinger")},
		{MethodName: "FixFingers", Handler: unaryHandler((DHTServer).FixFingers, "FixFingers")},
		{MethodName: "Stabilize", Handler: unaryHandler((DHTServer).Stabilize, "Stabilize")},
		{MethodName: "Health", Handler: unaryHandler((DHTServer).Health, "Health")},
		{MethodName: "Get", Handler: unaryHandler((DHTServer).Get, "Get")},
		{MethodName: "Put", Handler: unaryHandler((DHTServer).Put, "Put")},
		{MethodName: "GetNodeSummary", Handler: unaryHandler((DHTServer).GetNodeSummary, "GetNodeSummary")},
		{MethodName: "GetKvStoreSize", Handler: unaryHandler((DHTServer).GetKvStoreSize, "GetKvStoreSize")},
		{MethodName: "GetKvStoreData", Handler: unaryHandler((DHTServer).GetKvStoreData, "GetKvStoreData")},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Notify", Handler: _DHT_Notify_Handler, ServerStreams: true},
		{StreamName: "Handoff", Handler: _DHT_Handoff_Handler, ClientStreams: true},
	},
	Metadata: "chord.proto",
}
