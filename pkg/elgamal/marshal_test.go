package elgamal

import (
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCiphertext_Marshal(t *testing.T) {
	g := group.Default()
	pks, _ := keyPairs(t, g, 1)
	ct, _, err := Encrypt(rand.Reader, pks[0], nat(2))
	require.NoError(t, err)

	data, err := ct.MarshalBinary()
	require.NoError(t, err)
	decoded := Empty(g)
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, ct.Equal(decoded))

	js, err := json.Marshal(ct)
	require.NoError(t, err)
	fromJSON := Empty(g)
	require.NoError(t, json.Unmarshal(js, fromJSON))
	assert.True(t, ct.Equal(fromJSON))

	fromBytes := Empty(g)
	require.NoError(t, fromBytes.SetBytes(g.ElementBytes(ct.C1), g.ElementBytes(ct.C2)))
	assert.True(t, ct.Equal(fromBytes))

	assert.Error(t, new(Ciphertext).UnmarshalBinary(data))
}

func TestCiphertext_JSONFormat(t *testing.T) {
	g := toyGroup(t)
	pk, err := NewPublicKey(g, nat(14))
	require.NoError(t, err)
	ct, err := EncryptWithNonce(pk, nat(0), nat(3))
	require.NoError(t, err)
	js, err := json.Marshal(ct)
	require.NoError(t, err)
	assert.JSONEq(t, `{"c1":"10","c2":"0"}`, string(js))

	decoded := Empty(g)
	require.NoError(t, json.Unmarshal(js, decoded))
	assert.Equal(t, "0", group.Format(decoded.C2))

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"c1":"0","c2":"1"}`), Empty(g)), ErrInvalidInput)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"c1":"10","c2":"23"}`), Empty(g)), ErrInvalidInput)
	// 33 = 0b100001 would wrap around to 1 if truncated to the 5 bits of p
	assert.ErrorIs(t, Empty(g).SetBytes([]byte{10}, []byte{33}), ErrInvalidInput)
}

func TestDecryptionShare_Marshal(t *testing.T) {
	g := group.Default()
	_, sks := keyPairs(t, g, 1)
	ct, _, err := Encrypt(rand.Reader, sks[0].PublicKey, nat(1))
	require.NoError(t, err)
	share, err := ProveDecryptionShare(rand.Reader, ct, sks[0])
	require.NoError(t, err)
	share.ID = 7

	data, err := share.MarshalBinary()
	require.NoError(t, err)
	decoded := EmptyShare(g)
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.EqualValues(t, 7, decoded.ID)
	assert.NoError(t, VerifyDecryptionShare(sks[0].PublicKey, ct, decoded))

	js, err := json.Marshal(share)
	require.NoError(t, err)
	fromJSON := EmptyShare(g)
	require.NoError(t, json.Unmarshal(js, fromJSON))
	assert.NoError(t, VerifyDecryptionShare(sks[0].PublicKey, ct, fromJSON))

	plain, err := CreateDecryptionShare(ct, sks[0])
	require.NoError(t, err)
	js, err = json.Marshal(plain)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"`+group.Format(plain.Value)+`"}`, string(js))
}

func TestPublicKey_Marshal(t *testing.T) {
	g := toyGroup(t)
	pk, err := NewPublicKey(g, nat(19))
	require.NoError(t, err)

	js, err := json.Marshal(pk)
	require.NoError(t, err)
	assert.Equal(t, `"19"`, string(js))
	decoded := EmptyPublicKey(g)
	require.NoError(t, json.Unmarshal(js, decoded))
	assert.True(t, pk.Equal(decoded))

	data, err := pk.MarshalBinary()
	require.NoError(t, err)
	fromCBOR := EmptyPublicKey(g)
	require.NoError(t, fromCBOR.UnmarshalBinary(data))
	assert.True(t, pk.Equal(fromCBOR))

	assert.ErrorIs(t, json.Unmarshal([]byte(`"23"`), EmptyPublicKey(g)), ErrInvalidInput)
}

func TestRelay(t *testing.T) {
	g := group.Default()
	pks, sks := keyPairs(t, g, 2)
	joint, err := CombinePublicKeys(g, pks)
	require.NoError(t, err)
	ct, r, err := Encrypt(rand.Reader, joint, nat(2))
	require.NoError(t, err)

	relay := &Relay{Ciphertext: ct, Randomness: r, TaskDefinitionID: 1}
	js, err := json.Marshal(relay)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(js, &fields))
	assert.Contains(t, fields, "ciphertext")
	assert.Contains(t, fields, "randomNumber")
	assert.Equal(t, "1", string(fields["taskDefinitionId"]))

	decoded := EmptyRelay(g)
	require.NoError(t, json.Unmarshal(js, decoded))
	m, err := decoded.Open(joint)
	require.NoError(t, err)
	assert.Equal(t, "2", group.Format(m))
	assert.Equal(t, "2", group.Format(recoverAll(t, ct, shares(t, ct, sks))))

	other, err := g.SampleExponent(rand.Reader)
	require.NoError(t, err)
	forged := &Relay{Ciphertext: ct, Randomness: other}
	_, err = forged.Open(joint)
	assert.ErrorIs(t, err, ErrInvalidProof)
}
