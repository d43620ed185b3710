// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/emoji-auth/internal/platform/apperr"
	"github.com/taibuivan/emoji-auth/internal/platform/ctxutil"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

// TokenIssuer signs identity snapshots and verifies presented tokens.
// [sec.TokenService] implements it.
type TokenIssuer interface {
	Issue(subject sec.TokenSubject) (string, error)
	Verify(tokenString string, options sec.VerifyOptions) (*sec.AuthClaims, error)
}

// MetricsRecorder receives one observation per finished operation.
type MetricsRecorder interface {
	Observe(operation, outcome string, elapsed time.Duration)
}

// Service implements the five public auth operations.
//
// # Review Process
//
// This service is critical for security. Any changes to token checks or to
// which version a write is conditioned on must be reviewed together with the
// repository predicates.
type Service struct {
	lifecycle *Lifecycle
	tokens    TokenIssuer
	metrics   MetricsRecorder
}

// NewService constructs a new [Service]. metrics may be nil.
func NewService(lifecycle *Lifecycle, tokens TokenIssuer, metrics MetricsRecorder) *Service {
	return &Service{
		lifecycle: lifecycle,
		tokens:    tokens,
		metrics:   metrics,
	}
}

// Init returns a session for the caller.
//
// # Flow
//  1. claims present and still current: behaves as refresh.
//  2. claims present but stale: a new anonymous identity whose meta.parent
//     names the stale identity.
//  3. no claims: a new anonymous identity.
func (service *Service) Init(ctx context.Context, claims *sec.AuthClaims, meta Meta) (session *Session, err error) {
	defer service.track(ctx, OperationInit, time.Now(), &session, &err)

	meta = meta.FromClient()
	if claims != nil {
		identity, err := service.lifecycle.RefreshIdentity(ctx, claims.IdentityID, Status(claims.Status), claims.Version, meta)
		switch {
		case err == nil:
			return service.issue(identity)
		case errors.Is(err, ErrStaleToken):
			meta = meta.Merge(Meta{MetaParent: claims.IdentityID})
		default:
			return nil, err
		}
	}

	identity, err := service.lifecycle.CreateAnonymous(ctx, meta)
	if err != nil {
		return nil, err
	}
	return service.issue(identity)
}

// Register completes registration of the caller's anonymous identity.
//
// # Returns
//   - [ErrUnauthorized] without a valid token.
//   - [ErrNameConflict] or [ErrNotFound] from the transition.
func (service *Service) Register(ctx context.Context, claims *sec.AuthClaims, name, password string) (session *Session, err error) {
	defer service.track(ctx, OperationRegister, time.Now(), &session, &err)

	if claims == nil {
		return nil, ErrUnauthorized
	}

	identity, err := service.lifecycle.RegisterIdentity(ctx, claims.IdentityID, name, password)
	if err != nil {
		return nil, err
	}
	return service.issue(identity)
}

// Login authenticates by name and password. It does not bump the version, so
// tokens held elsewhere stay valid.
func (service *Service) Login(ctx context.Context, name, password string, meta Meta) (session *Session, err error) {
	defer service.track(ctx, OperationLogin, time.Now(), &session, &err)

	identity, err := service.lifecycle.LoginByName(ctx, name, password, meta.FromClient())
	if err != nil {
		return nil, err
	}
	return service.issue(identity)
}

// Refresh re-issues a token for the raw bearer string, accepting an expired
// but correctly signed token as long as its version is still current.
//
// # Returns
//   - [ErrNoToken] when rawToken is empty.
//   - [ErrUnauthorized] when the signature or issuer does not verify.
//   - [ErrStaleToken] when the snapshot no longer matches.
func (service *Service) Refresh(ctx context.Context, rawToken string, meta Meta) (session *Session, err error) {
	defer service.track(ctx, OperationRefresh, time.Now(), &session, &err)

	if rawToken == "" {
		return nil, ErrNoToken
	}

	claims, err := service.tokens.Verify(rawToken, sec.VerifyOptions{IgnoreExpiration: true})
	if err != nil {
		return nil, ErrUnauthorized.WithCause(err)
	}

	identity, err := service.lifecycle.RefreshIdentity(ctx, claims.IdentityID, Status(claims.Status), claims.Version, meta.FromClient())
	if err != nil {
		return nil, err
	}
	return service.issue(identity)
}

// Change rotates credentials for the caller. claims must come from a
// non-expired verification; their version conditions the write.
func (service *Service) Change(ctx context.Context, claims *sec.AuthClaims, name, password, newPassword string) (session *Session, err error) {
	defer service.track(ctx, OperationChange, time.Now(), &session, &err)

	if claims == nil {
		return nil, ErrUnauthorized
	}

	identity, err := service.lifecycle.ChangeCredentials(ctx, claims.IdentityID, claims.Version, name, password, newPassword)
	if err != nil {
		return nil, err
	}
	return service.issue(identity)
}

// issue signs identity into a fresh session.
func (service *Service) issue(identity *Identity) (*Session, error) {
	token, err := service.tokens.Issue(identity.Subject())
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_issue_failed: %w", err)
	}
	return &Session{Token: token, Identity: identity}, nil
}

// track records metrics and a structured log line for a finished operation.
// Passwords and tokens are never logged.
func (service *Service) track(ctx context.Context, operation string, startedAt time.Time, session **Session, err *error) {
	elapsed := time.Since(startedAt)
	outcome := apperr.CodeOf(*err)

	if service.metrics != nil {
		service.metrics.Observe(operation, outcome, elapsed)
	}

	logger := ctxutil.GetLogger(ctx)
	attrs := []any{
		slog.String("operation", operation),
		slog.String("outcome", outcome),
		slog.Int64("latency_ms", elapsed.Milliseconds()),
	}

	if *err == nil {
		identity := (*session).Identity
		attrs = append(attrs,
			slog.String("identity_id", identity.ID),
			slog.String("status", string(identity.Status)),
			slog.Int64("version", identity.Version),
		)
		logger.InfoContext(ctx, "auth_operation_succeeded", attrs...)
		return
	}

	if appError := apperr.As(*err); appError != nil && appError.HTTPStatus < http.StatusInternalServerError {
		logger.InfoContext(ctx, "auth_operation_rejected", attrs...)
		return
	}

	logger.ErrorContext(ctx, "auth_operation_failed", append(attrs, slog.Any("error", *err))...)
}
