// Package engine evaluates authorization decisions with OPA Rego as an alternative to the static
// permission lookup.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"storehub/backend/internal/platform/rbac"
)

const allowQuery = "data.storehub.authz.allow"

// DefaultPolicy admits a principal whose effective permissions contain the required one.
// Custom policies must declare package storehub.authz and define allow.
const DefaultPolicy = `package storehub.authz

default allow := false

allow if {
	input.required in input.principal.permissions
}
`

// OPAAuthorizer implements rbac.Authorizer by evaluating a prepared Rego query.
// The query is compiled once; Authorize is safe for concurrent use.
type OPAAuthorizer struct {
	query  rego.PreparedEvalQuery
	logger *zap.Logger
}

var _ rbac.Authorizer = (*OPAAuthorizer)(nil)

// NewOPAAuthorizer compiles policy (DefaultPolicy when empty) and prepares the allow query.
func NewOPAAuthorizer(ctx context.Context, policy string, logger *zap.Logger) (*OPAAuthorizer, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAAuthorizer{query: pq, logger: logger}, nil
}

// NewOPAAuthorizerFromFile reads a Rego policy from path. An empty path uses DefaultPolicy.
func NewOPAAuthorizerFromFile(ctx context.Context, path string, logger *zap.Logger) (*OPAAuthorizer, error) {
	if path == "" {
		return NewOPAAuthorizer(ctx, "", logger)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return NewOPAAuthorizer(ctx, string(b), logger)
}

// Authorize implements rbac.Authorizer. Evaluation errors deny.
func (a *OPAAuthorizer) Authorize(ctx context.Context, p *rbac.Principal, perm rbac.Permission) error {
	if p == nil {
		return rbac.ErrUnauthenticated
	}
	input := map[string]interface{}{
		"principal": map[string]interface{}{
			"id":          p.AccountID,
			"role":        string(p.Role),
			"permissions": rbac.Strings(p.Permissions),
		},
		"required": string(perm),
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		a.logger.Error("authz policy evaluation failed", zap.Error(err), zap.String("permission", string(perm)))
		return rbac.ErrInsufficientPermission
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return rbac.ErrInsufficientPermission
	}
	if allowed, ok := rs[0].Expressions[0].Value.(bool); ok && allowed {
		return nil
	}
	return rbac.ErrInsufficientPermission
}

// HealthCheck evaluates the prepared query against a minimal input.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	input := map[string]interface{}{
		"principal": map[string]interface{}{"id": "", "role": "", "permissions": []string{}},
		"required":  "",
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}
