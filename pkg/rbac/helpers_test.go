package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/token"
)

func mustCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec("rbac-test-secret")
	require.NoError(t, err)
	return codec
}
