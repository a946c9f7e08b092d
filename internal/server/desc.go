package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "invoiceocr.v1.InvoiceOCR"

// InvoiceOCRServer is the gRPC surface. Messages are google.protobuf.Struct
// documents shaped like the JSON of the entity types.
type InvoiceOCRServer interface {
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recognize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecognizeBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BatchStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SupportedTypes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(InvoiceOCRServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InvoiceOCRServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvoiceOCRServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Classify", InvoiceOCRServer.Classify),
		unary("Recognize", InvoiceOCRServer.Recognize),
		unary("RecognizeBatch", InvoiceOCRServer.RecognizeBatch),
		unary("BatchStatus", InvoiceOCRServer.BatchStatus),
		unary("CancelBatch", InvoiceOCRServer.CancelBatch),
		unary("SupportedTypes", InvoiceOCRServer.SupportedTypes),
		unary("ExportRecords", InvoiceOCRServer.ExportRecords),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoiceocr/v1/invoice_ocr.proto",
}

func RegisterInvoiceOCRServer(s grpc.ServiceRegistrar, srv InvoiceOCRServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with in and returns the response document.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
