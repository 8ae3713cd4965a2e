package interceptors

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"storehub/backend/internal/platform/rbac"
)

type fakeResolver struct {
	valid string
}

func (f fakeResolver) CurrentPrincipal(_ context.Context, token string) (*rbac.Principal, error) {
	if token != f.valid {
		return nil, errors.New("invalid token")
	}
	return &rbac.Principal{AccountID: "user-1", Role: rbac.RoleUser}, nil
}

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

func principalHandler(ctx context.Context, req interface{}) (interface{}, error) {
	p, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return "anonymous: " + rbac.Unauthenticated(ctx).Error(), nil
	}
	return p.AccountID, nil
}

func withAuthorization(v string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", v))
}

func TestAuthUnary_NoTokenIsAnonymous(t *testing.T) {
	interceptor := AuthUnary(fakeResolver{valid: "good"})

	resp, err := interceptor(context.Background(), "request", testInfo, principalHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "anonymous: authentication required" {
		t.Errorf("response = %v, want anonymous: authentication required", resp)
	}
}

func TestAuthUnary_ValidToken(t *testing.T) {
	interceptor := AuthUnary(fakeResolver{valid: "good"})

	resp, err := interceptor(withAuthorization("Bearer good"), "request", testInfo, principalHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "user-1" {
		t.Errorf("response = %v, want user-1", resp)
	}
}

func TestAuthUnary_InvalidTokenContinuesAnonymously(t *testing.T) {
	interceptor := AuthUnary(fakeResolver{valid: "good"})

	resp, err := interceptor(withAuthorization("bearer forged"), "request", testInfo, principalHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "anonymous: invalid token" {
		t.Errorf("response = %v, want anonymous: invalid token", resp)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"BEARER abc":   "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for in, want := range cases {
		if got := extractBearer(withAuthorization(in)); got != want {
			t.Errorf("extractBearer(%q) = %q, want %q", in, got, want)
		}
	}
	if got := extractBearer(context.Background()); got != "" {
		t.Errorf("extractBearer(no metadata) = %q, want empty", got)
	}
}
