package polynomial

import (
	"math/big"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/stretchr/testify/require"
)

func toyGroup(t *testing.T, generator int64) *group.Parameters {
	t.Helper()
	g, err := group.New(big.NewInt(23), big.NewInt(generator))
	require.NoError(t, err)
	return g
}

func nat(x uint64) *saferith.Nat {
	return new(saferith.Nat).SetUint64(x)
}
