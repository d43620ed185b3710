// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package requestutil provides utilities for extracting data from HTTP requests.

It abstracts body decoding, bearer-token extraction, and access to the
verified claims stored by the authentication middleware.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/taibuivan/emoji-auth/internal/platform/apperr"
	"github.com/taibuivan/emoji-auth/internal/platform/constants"
	"github.com/taibuivan/emoji-auth/internal/platform/ctxutil"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
	"github.com/taibuivan/emoji-auth/internal/platform/validate"
)

// maxBodyBytes caps request bodies; auth payloads are tiny.
const maxBodyBytes = 64 << 10

// ErrMalformedAuthorization is returned when the Authorization header is not "Bearer <token>".
var ErrMalformedAuthorization = apperr.Unauthorized("Invalid authorization format")

/*
DecodeJSON reads the request body and decodes it into the target structure.

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(request.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
DecodeOptionalJSON behaves like DecodeJSON but accepts an empty body,
leaving target untouched.
*/
func DecodeOptionalJSON(request *http.Request, target interface{}) error {
	if request.Body == nil || request.Body == http.NoBody {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(request.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
BearerToken extracts the raw token from the Authorization header.

Returns:
  - string: The token, or "" when no Authorization header was sent
  - error: ErrMalformedAuthorization when the header is present but not a bearer credential
*/
func BearerToken(request *http.Request) (string, error) {
	header := strings.TrimSpace(request.Header.Get(constants.HeaderAuthorization))
	if header == "" {
		return "", nil
	}

	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, constants.BearerScheme) || token == "" {
		return "", ErrMalformedAuthorization
	}

	return token, nil
}

/*
Claims extracts the verified token claims from the request context.

Returns nil if the request is not authenticated.
*/
func Claims(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetClaims(request.Context())
}

/*
RequiredClaims ensures the request is authenticated and returns the claims.

Returns:
  - *sec.AuthClaims: The verified claims
  - error: the token rejection reason, or apperr.Unauthorized if no token was sent
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	claims := ctxutil.GetClaims(request.Context())
	if claims != nil {
		return claims, nil
	}

	if reason := ctxutil.GetTokenRejection(request.Context()); reason != nil {
		return nil, reason
	}

	return nil, apperr.Unauthorized("Authentication required")
}
