// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package requestutil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/emoji-auth/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/emoji-auth/internal/platform/request"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
	"github.com/taibuivan/emoji-auth/internal/platform/validate"
)

/*
TestBearerToken covers header parsing.
*/
func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"absent", "", "", false},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"lowercase_scheme", "bearer abc", "abc", false},
		{"basic_scheme", "Basic dXNlcjpwYXNz", "", true},
		{"missing_token", "Bearer ", "", true},
		{"no_space", "Bearerabc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}

			token, err := requestutil.BearerToken(request)
			if tt.wantErr {
				assert.ErrorIs(t, err, requestutil.ErrMalformedAuthorization)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

/*
TestDecodeOptionalJSON accepts empty bodies but rejects malformed ones.
*/
func TestDecodeOptionalJSON(t *testing.T) {
	var target struct {
		Meta map[string]any `json:"meta"`
	}

	empty := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, requestutil.DecodeOptionalJSON(empty, &target))
	assert.Nil(t, target.Meta)

	valid := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"meta":{"device":"ios"}}`))
	require.NoError(t, requestutil.DecodeOptionalJSON(valid, &target))
	assert.Equal(t, "ios", target.Meta["device"])

	broken := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"meta":`))
	assert.ErrorIs(t, requestutil.DecodeOptionalJSON(broken, &target), validate.ErrInvalidJSON)
	assert.ErrorIs(t, requestutil.DecodeJSON(httptest.NewRequest(http.MethodPost, "/", nil), &target), validate.ErrInvalidJSON)
}

/*
TestRequiredClaims surfaces the recorded rejection reason.
*/
func TestRequiredClaims(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "/", nil)

	// 1. Anonymous
	_, err := requestutil.RequiredClaims(request)
	require.Error(t, err)
	assert.Nil(t, requestutil.Claims(request))

	// 2. Rejected token
	rejected := request.WithContext(ctxutil.WithTokenRejection(request.Context(), sec.ErrExpiredToken))
	_, err = requestutil.RequiredClaims(rejected)
	assert.ErrorIs(t, err, sec.ErrExpiredToken)

	// 3. Verified token
	claims := &sec.AuthClaims{IdentityID: "id-1"}
	authed := request.WithContext(ctxutil.WithClaims(request.Context(), claims))
	got, err := requestutil.RequiredClaims(authed)
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.IdentityID)
}
