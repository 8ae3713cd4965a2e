package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"storehub/backend/internal/platform/rbac"
)

// PrincipalServiceName is the gRPC service exposing the caller's principal.
const PrincipalServiceName = "storehub.auth.v1.PrincipalService"

// WhoAmIMethod is the full method name of PrincipalService.WhoAmI.
const WhoAmIMethod = "/" + PrincipalServiceName + "/WhoAmI"

// PrincipalServiceServer is the server API of PrincipalService.
type PrincipalServiceServer interface {
	WhoAmI(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// PrincipalServer answers WhoAmI with the principal attached by the gRPC gate, the counterpart of
// GET /api/auth/me.
type PrincipalServer struct{}

var _ PrincipalServiceServer = (*PrincipalServer)(nil)

// NewPrincipalServer returns a PrincipalServer.
func NewPrincipalServer() *PrincipalServer {
	return &PrincipalServer{}
}

// Register adds PrincipalService to r.
func (s *PrincipalServer) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&principalServiceDesc, s)
}

// WhoAmI returns {"id", "role", "permissions"} of the caller. Anonymous callers get Unauthenticated with
// "invalid token" when their token was not accepted, "authentication required" otherwise.
func (s *PrincipalServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		_, msg := StatusFor(rbac.Unauthenticated(ctx))
		return nil, status.Error(codes.Unauthenticated, msg)
	}
	perms := make([]interface{}, len(p.Permissions))
	for i, perm := range p.Permissions {
		perms[i] = string(perm)
	}
	out, err := structpb.NewStruct(map[string]interface{}{
		"id":          p.AccountID,
		"role":        string(p.Role),
		"permissions": perms,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func whoAmIHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PrincipalServiceServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PrincipalServiceServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// principalServiceDesc is written by hand; the service uses only well-known message types.
var principalServiceDesc = grpc.ServiceDesc{
	ServiceName: PrincipalServiceName,
	HandlerType: (*PrincipalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storehub/auth/v1/principal.proto",
}
