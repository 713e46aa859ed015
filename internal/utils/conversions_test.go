package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-dashboard-core/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestClaimStrings(t *testing.T) {
	require.Equal(t, []string{"admin"}, utils.ClaimStrings("admin"))
	require.Nil(t, utils.ClaimStrings(""))
	require.Equal(t, []string{"a", "b"}, utils.ClaimStrings([]any{"a", 1, "b"}))
	require.Equal(t, []string{"x"}, utils.ClaimStrings([]string{"x"}))
	require.Nil(t, utils.ClaimStrings(42))
	require.Equal(t, "a", utils.ClaimString([]any{"a", "b"}))
	require.Equal(t, "", utils.ClaimString(nil))
}
