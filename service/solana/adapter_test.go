package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	t.Run("picks one of the configured endpoints", func(t *testing.T) {
		endpoints := []string{
			"https://api.devnet.solana.com",
			"https://devnet.helius-rpc.com/?api-key=test",
		}

		selected, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		assert.Contains(t, endpoints, selected)
	})

	t.Run("single endpoint is always chosen", func(t *testing.T) {
		selected, err := SelectRandomEndpoint([]string{"https://api.devnet.solana.com"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.devnet.solana.com", selected)
	})

	t.Run("error on nil slice", func(t *testing.T) {
		_, err := SelectRandomEndpoint(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no RPC endpoints configured")
	})
}

func TestNewRPCClient(t *testing.T) {
	c := NewRPCClient("https://api.devnet.solana.com")
	assert.NotNil(t, c)
}
