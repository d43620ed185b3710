// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/emoji-auth/internal/auth"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "alice", "alice"},
		{"uppercase", "ALICE", "alice"},
		{"mixed_case", "AlIcE", "alice"},
		{"surrounding_space", "  alice ", "alice"},
		{"full_width", "Ａｌｉｃｅ", "alice"},
		{"emoji_kept", "alice😀", "alice😀"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.NormalizeName(tt.input))
		})
	}
}

func TestPlaceholderName(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+ \d{1,2}$`)

	for range 50 {
		assert.Regexp(t, pattern, auth.PlaceholderName())
	}
}
