package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 64-bit safe prime ≡ 7 (mod 8), with 4 generating the subgroup of order (p-1)/2.
const testGroup = `{"prime": "18446744073709543127", "generator": "4"}`

type cliTest struct {
	t     *testing.T
	dir   string
	group string
	log   bytes.Buffer
}

func newCLITest(t *testing.T) *cliTest {
	dir := t.TempDir()
	path := filepath.Join(dir, "group.json")
	require.NoError(t, os.WriteFile(path, []byte(testGroup), 0o600))
	return &cliTest{t: t, dir: dir, group: path}
}

func (c *cliTest) path(name string) string {
	return filepath.Join(c.dir, name)
}

func (c *cliTest) run(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(&out, &c.log)
	err := app.Run(append([]string{"teg", "--group", c.group}, args...))
	return out.String(), err
}

func (c *cliTest) mustRun(args ...string) string {
	out, err := c.run(args...)
	require.NoError(c.t, err, c.log.String())
	return out
}

func (c *cliTest) parameters() *group.Parameters {
	g := new(group.Parameters)
	require.NoError(c.t, json.Unmarshal([]byte(testGroup), g))
	return g
}

func (c *cliTest) recover(ciphertext string, extra []string, shares ...string) recovered {
	args := append([]string{"recover", "--ciphertext", ciphertext}, extra...)
	out := c.mustRun(append(args, shares...)...)
	var r recovered
	require.NoError(c.t, json.Unmarshal([]byte(out), &r))
	return r
}

func TestParams_Default(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newApp(&out, &bytes.Buffer{}).Run([]string{"teg", "params"}))

	g := new(group.Parameters)
	require.NoError(t, json.Unmarshal(out.Bytes(), g))
	assert.True(t, g.Equal(group.Default()))
}

func TestParams_Generate(t *testing.T) {
	c := newCLITest(t)
	c.mustRun("params", "--bits", "32", "--workers", "2", "--out", c.path("small.json"))

	g := new(group.Parameters)
	require.NoError(t, readJSON(c.path("small.json"), g))
	assert.Equal(t, 32, g.Bits())
	assert.True(t, g.PrimeOrder())
	assert.Contains(t, c.log.String(), "too small")
}

func TestParams_Seed(t *testing.T) {
	c := newCLITest(t)
	a := c.mustRun("params", "--seed", "market")
	b := c.mustRun("params", "--seed", "market")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c.mustRun("params"))
}

func TestWorkflow(t *testing.T) {
	c := newCLITest(t)
	for _, id := range []string{"1", "2", "3"} {
		c.mustRun("keygen", "--id", id, "--context", "market/"+id, "--out", c.path("key"+id+".json"))
	}
	keys := []string{c.path("key1.json"), c.path("key2.json"), c.path("key3.json")}
	c.mustRun(append([]string{"combine", "--out", c.path("joint.json")}, keys...)...)
	c.mustRun("encrypt", "--key", c.path("joint.json"), "--vote", "yes", "--out", c.path("ct.json"))

	var shares []string
	for i, key := range keys {
		name := c.path("share" + string(rune('1'+i)) + ".json")
		c.mustRun("share", "--key", key, "--ciphertext", c.path("ct.json"), "--out", name)
		shares = append(shares, name)
	}

	r := c.recover(c.path("ct.json"), nil, shares...)
	assert.Equal(t, "1", r.Message)
	assert.Equal(t, "yes", r.Vote)

	var verify []string
	for _, key := range keys {
		verify = append(verify, "--verify", key)
	}
	r = c.recover(c.path("ct.json"), verify, shares...)
	assert.Equal(t, "yes", r.Vote)

	// a share checked against the wrong key
	verify[1], verify[3] = verify[3], verify[1]
	_, err := c.run(append(append([]string{"recover", "--ciphertext", c.path("ct.json")}, verify...), shares...)...)
	assert.ErrorIs(t, err, elgamal.ErrInvalidProof)
}

func TestCombine_BadProof(t *testing.T) {
	c := newCLITest(t)
	c.mustRun("keygen", "--context", "market/1", "--out", c.path("key.json"))

	var kf keyFile
	require.NoError(t, readJSON(c.path("key.json"), &kf))
	kf.Context = "market/2"
	require.NoError(t, writeJSON(nil, c.path("key.json"), kf))

	_, err := c.run("combine", c.path("key.json"))
	assert.Error(t, err)
}

func TestEncrypt_Prompt(t *testing.T) {
	defer func(ask func() (market.Choice, error)) { askVote = ask }(askVote)
	askVote = func() (market.Choice, error) { return market.No, nil }

	c := newCLITest(t)
	c.mustRun("keygen", "--out", c.path("key.json"))
	c.mustRun("encrypt", "--key", c.path("key.json"), "--out", c.path("ct.json"))
	c.mustRun("share", "--key", c.path("key.json"), "--ciphertext", c.path("ct.json"), "--prove=false", "--out", c.path("share.json"))

	r := c.recover(c.path("ct.json"), nil, c.path("share.json"))
	assert.Equal(t, "no", r.Vote)
}

func TestEncrypt_Relay(t *testing.T) {
	c := newCLITest(t)
	c.mustRun("keygen", "--out", c.path("key.json"))
	out := c.mustRun("encrypt", "--key", c.path("key.json"), "--message", "5", "--relay", "--task", "7")

	g := c.parameters()
	relay := elgamal.EmptyRelay(g)
	require.NoError(t, json.Unmarshal([]byte(out), relay))
	assert.EqualValues(t, 7, relay.TaskDefinitionID)

	public, _, err := loadPublicKey(g, c.path("key.json"))
	require.NoError(t, err)
	m, err := relay.Open(public)
	require.NoError(t, err)
	assert.Equal(t, "5", group.Format(m))
}

func TestEncrypt_Invalid(t *testing.T) {
	c := newCLITest(t)
	c.mustRun("keygen", "--out", c.path("key.json"))

	_, err := c.run("encrypt", "--key", c.path("key.json"), "--message", "18446744073709543127")
	assert.ErrorIs(t, err, elgamal.ErrMessageTooLarge)

	_, err = c.run("encrypt", "--key", c.path("key.json"), "--message", "-1")
	assert.ErrorIs(t, err, elgamal.ErrInvalidInput)

	_, err = c.run("encrypt", "--key", c.path("key.json"), "--vote", "maybe")
	assert.Error(t, err)

	_, err = c.run("encrypt", "--key", c.path("missing.json"), "--vote", "yes")
	assert.Error(t, err)
}

func TestRecover_NoShares(t *testing.T) {
	c := newCLITest(t)
	c.mustRun("keygen", "--out", c.path("key.json"))
	c.mustRun("encrypt", "--key", c.path("key.json"), "--vote", "yes", "--out", c.path("ct.json"))

	_, err := c.run("recover", "--ciphertext", c.path("ct.json"))
	assert.ErrorIs(t, err, elgamal.ErrNotEnoughShares)

	_, err = c.run("recover", "--ciphertext", c.path("ct.json"), "--policy", "some")
	assert.Error(t, err)
}

func TestDemo(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"all", []string{"demo", "-n", "3"}, "yes"},
		{"threshold", []string{"demo", "-n", "4", "-t", "2", "--vote", "no"}, "no"},
		{"single", []string{"demo", "-n", "1", "--vote", "no"}, "no"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newCLITest(t)
			out := c.mustRun(tc.args...)

			var state market.State
			require.NoError(t, json.Unmarshal([]byte(out), &state))
			assert.True(t, state.IsFinalized)
			assert.Equal(t, tc.want, state.Winner)
			assert.Equal(t, market.Recovered.String(), state.Phase)
			assert.True(t, strings.Contains(c.log.String(), "market finalized"))
		})
	}
}
