// Package auth resolves bearer tokens into caller identities. The engine
// only needs to know who the caller is and which role they act as; token
// issuance lives outside this service.
package auth

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid or unknown token")

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
	RoleProvider Role = "provider"
)

// Identity is the authenticated caller. For providers, SubjectID is the
// provider id; for customers it is the user id.
type Identity struct {
	SubjectID string
	Role      Role
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// StaticVerifier maps pre-shared tokens to identities. Token entries come
// from configuration as "token:role:subject" triples.
type StaticVerifier struct {
	tokens map[string]Identity
}

// NewStaticVerifier parses entries of the form "token:role:subject". Bad
// entries are skipped rather than failing startup.
func NewStaticVerifier(entries []string) *StaticVerifier {
	tokens := make(map[string]Identity, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(strings.TrimSpace(e), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			continue
		}
		role := Role(parts[1])
		switch role {
		case RoleCustomer, RoleOperator, RoleProvider:
		default:
			continue
		}
		tokens[parts[0]] = Identity{SubjectID: parts[2], Role: role}
	}
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &id, nil
}
