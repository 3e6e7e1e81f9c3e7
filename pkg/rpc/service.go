package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Handler is a unary method implemented on plain request/response structs.
type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// Unary describes a unary method of service backed by fn. Interceptors see
// the decoded *Req and the full method name.
func Unary[Req, Resp any](service, method string, fn Handler[Req, Resp]) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return fn(ctx, r.(*Req))
			})
		},
	}
}

// ServiceDesc assembles a descriptor for methods. The handler type is left
// open since methods are bound closures rather than an interface.
func ServiceDesc(service string, methods ...grpc.MethodDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*any)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    service,
	}
}

// Invoke calls a unary method using the msgpack codec.
func Invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	resp := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}
