package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.ErrorContains(t, err, "service name required")
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer abc, x-team =vault ,malformed,=nokey")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "vault",
	}, headers)
	require.Empty(t, ParseHeaders(""))
}
