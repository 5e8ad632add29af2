// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nxentra/ledgerd/internal/policy"
)

// actorClaims is the JWT shape the edge expects: standard registered claims
// plus a roles list. Decoding the token is all this package does -- spec.md
// §1 keeps "authentication token decoding" itself out of scope, so there is
// no login flow or refresh handling here, only claims extraction.
type actorClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// actorExtractor turns a bearer token into a policy.Actor.
type actorExtractor struct {
	signingKey []byte
}

func newActorExtractor(signingKey string) *actorExtractor {
	return &actorExtractor{signingKey: []byte(signingKey)}
}

func (a *actorExtractor) extract(r *http.Request) (policy.Actor, error) {
	header := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == "" || tokenString == header {
		return policy.Actor{}, fmt.Errorf("missing bearer token")
	}

	claims := &actorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil || !token.Valid {
		return policy.Actor{}, fmt.Errorf("invalid bearer token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return policy.Actor{}, fmt.Errorf("token subject %q is not a user id: %w", claims.Subject, err)
	}
	return policy.Actor{UserID: userID, Roles: claims.Roles}, nil
}

type actorContextKey struct{}

func withActor(ctx context.Context, actor policy.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// actorFromContext extracts the actor a request's auth middleware resolved.
func actorFromContext(ctx context.Context) (policy.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(policy.Actor)
	return actor, ok
}
