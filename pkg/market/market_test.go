package market

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/party"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
	"github.com/encmarket/threshold-elgamal/pkg/threshold"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type participant struct {
	id  party.ID
	key *elgamal.SecretKey
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func newMarket(t *testing.T, clock Clock, mutate func(*Config)) *Market {
	t.Helper()
	config := Config{
		Description:       "Will it rain tomorrow?",
		RegistrationDelay: time.Hour,
		Duration:          24 * time.Hour,
		Clock:             clock,
	}
	if mutate != nil {
		mutate(&config)
	}
	m, err := New(config)
	require.NoError(t, err)
	return m
}

func participants(t *testing.T, g *group.Parameters, n int) []participant {
	t.Helper()
	out := make([]participant, n)
	for i := range out {
		_, sk, err := elgamal.KeyGen(rand.Reader, g)
		require.NoError(t, err)
		out[i] = participant{id: party.ID(i + 1), key: sk}
	}
	return out
}

func register(t *testing.T, m *Market, ps []participant) {
	t.Helper()
	for _, p := range ps {
		proof, err := p.key.ProvePossession(rand.Reader, m.PossessionContext(p.id))
		require.NoError(t, err)
		require.NoError(t, m.SubmitKey(p.id, p.key.PublicKey, proof))
	}
}

func submitShares(t *testing.T, m *Market, ps []participant) {
	t.Helper()
	ct, err := m.Ciphertext()
	require.NoError(t, err)
	for _, p := range ps {
		share, err := elgamal.ProveDecryptionShare(rand.Reader, ct, p.key)
		require.NoError(t, err)
		share.ID = p.id
		require.NoError(t, m.SubmitPartialDecrypt(share))
	}
}

func TestLifecycle(t *testing.T) {
	clock := newClock()
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	m := newMarket(t, clock, func(c *Config) {
		c.RequireKeyProofs = true
		c.RequireShareProofs = true
		c.Logger = &logger
	})
	assert.Equal(t, ParametersFixed, m.Phase())

	ps := participants(t, group.Default(), 3)
	register(t, m, ps)
	assert.Equal(t, KeysRegistered, m.Phase())

	relay, err := m.Vote(rand.Reader, Yes)
	require.NoError(t, err)
	assert.Equal(t, VoteEncrypted, m.Phase())
	joint, err := m.JointKey()
	require.NoError(t, err)
	opened, err := relay.Open(joint)
	require.NoError(t, err)
	assert.Equal(t, "1", group.Format(opened))

	_, err = m.Finalize()
	assert.ErrorIs(t, err, ErrVotingOpen)

	clock.Advance(25 * time.Hour)
	submitShares(t, m, ps)
	assert.Equal(t, SharesCollecting, m.Phase())
	assert.NoError(t, m.VerifyShares(pool.NewPool(0)))

	winner, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, Yes, winner)
	assert.Equal(t, Recovered, m.Phase())

	state := m.Snapshot()
	assert.Equal(t, m.ID(), state.ID)
	assert.Equal(t, "Will it rain tomorrow?", state.Description)
	assert.True(t, state.IsFinalized)
	assert.Equal(t, "yes", state.Winner)
	assert.Equal(t, "all", state.Policy)
	assert.Len(t, state.PublicKeys, 3)
	assert.Len(t, state.PartialDecrypts, 3)
	assert.Equal(t, group.Format(relay.Ciphertext.C1), state.C1)
	assert.Equal(t, group.Format(relay.Ciphertext.C2), state.C2)
	assert.Equal(t, state.KeyRegistrationExpiration.Add(24*time.Hour), state.Expiration)

	_, err = m.Finalize()
	assert.ErrorIs(t, err, ErrFinalized)
	assert.ErrorIs(t, m.ModifyVote(relay.Ciphertext, joint), ErrFinalized)

	assert.Contains(t, logs.String(), "market finalized")
	assert.Contains(t, logs.String(), m.ID())
}

func TestWindows(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 3)

	_, err := m.Vote(rand.Reader, No)
	assert.ErrorIs(t, err, ErrNoKeys)

	register(t, m, ps[:2])
	assert.ErrorIs(t, m.SubmitKey(ps[0].id, ps[0].key.PublicKey, nil), ErrDuplicateKey)

	_, err = m.Ciphertext()
	assert.ErrorIs(t, err, ErrNoVote)
	_, err = m.Finalize()
	assert.ErrorIs(t, err, ErrNoVote)

	_, err = m.Vote(rand.Reader, No)
	require.NoError(t, err)
	assert.ErrorIs(t, m.SubmitKey(ps[2].id, ps[2].key.PublicKey, nil), ErrKeySetFrozen)

	ct, err := m.Ciphertext()
	require.NoError(t, err)
	share, err := elgamal.CreateDecryptionShare(ct, ps[0].key)
	require.NoError(t, err)
	share.ID = ps[0].id
	assert.ErrorIs(t, m.SubmitPartialDecrypt(share), ErrVotingOpen)

	joint, err := m.JointKey()
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)
	assert.ErrorIs(t, m.ModifyVote(ct, joint), ErrVotingClosed)

	require.NoError(t, m.SubmitPartialDecrypt(share))
	assert.ErrorIs(t, m.SubmitPartialDecrypt(share), ErrDuplicateShare)

	stranger, err := elgamal.CreateDecryptionShare(ct, ps[2].key)
	require.NoError(t, err)
	stranger.ID = ps[2].id
	assert.ErrorIs(t, m.SubmitPartialDecrypt(stranger), ErrUnknownParticipant)

	_, err = m.Finalize()
	assert.ErrorIs(t, err, elgamal.ErrNotEnoughShares)
	assert.Equal(t, SharesCollecting, m.Phase(), "a failed recovery keeps the market open")

	submitShares(t, m, ps[1:2])
	winner, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, No, winner)
}

func TestRegistrationClosed(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 1)
	clock.Advance(time.Hour)
	assert.ErrorIs(t, m.SubmitKey(ps[0].id, ps[0].key.PublicKey, nil), ErrRegistrationClosed)
}

func TestKeyProofs(t *testing.T) {
	m := newMarket(t, newClock(), func(c *Config) { c.RequireKeyProofs = true })
	ps := participants(t, group.Default(), 2)

	assert.ErrorIs(t, m.SubmitKey(ps[0].id, ps[0].key.PublicKey, nil), elgamal.ErrInvalidProof)

	// a proof made for participant 2 cannot be replayed by participant 1
	proof, err := ps[0].key.ProvePossession(rand.Reader, m.PossessionContext(ps[1].id))
	require.NoError(t, err)
	assert.ErrorIs(t, m.SubmitKey(ps[0].id, ps[0].key.PublicKey, proof), elgamal.ErrInvalidProof)

	other := newMarket(t, newClock(), nil)
	proof, err = ps[0].key.ProvePossession(rand.Reader, other.PossessionContext(ps[0].id))
	require.NoError(t, err)
	assert.ErrorIs(t, m.SubmitKey(ps[0].id, ps[0].key.PublicKey, proof), elgamal.ErrInvalidProof)

	assert.ErrorIs(t, m.SubmitKey(0, ps[0].key.PublicKey, nil), party.ErrZeroID)
}

func TestShareProofs(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, func(c *Config) { c.RequireShareProofs = true })
	ps := participants(t, group.Default(), 2)
	register(t, m, ps)
	_, err := m.Vote(rand.Reader, Yes)
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)

	ct, err := m.Ciphertext()
	require.NoError(t, err)
	plain, err := elgamal.CreateDecryptionShare(ct, ps[0].key)
	require.NoError(t, err)
	plain.ID = ps[0].id
	assert.ErrorIs(t, m.SubmitPartialDecrypt(plain), elgamal.ErrInvalidProof)

	// participant 2's share submitted under participant 1's ID
	swapped, err := elgamal.ProveDecryptionShare(rand.Reader, ct, ps[1].key)
	require.NoError(t, err)
	swapped.ID = ps[0].id
	assert.ErrorIs(t, m.SubmitPartialDecrypt(swapped), elgamal.ErrInvalidProof)
}

func TestThresholdMarket(t *testing.T) {
	clock := newClock()
	g := group.Default()
	dealing, err := threshold.Deal(rand.Reader, g, 2, party.Sequential(3))
	require.NoError(t, err)

	m := newMarket(t, clock, func(c *Config) {
		c.Policy = elgamal.ThresholdRequired{Threshold: 2}
		c.JointKey = dealing.PublicKey
		c.Commitments = dealing.Commitments
		c.RequireShareProofs = true
	})
	ps := make([]participant, len(dealing.Shares))
	for i, share := range dealing.Shares {
		ps[i] = participant{id: share.ID, key: share.Secret}
	}

	// the verification key of participant 2 registered under ID 1
	assert.ErrorIs(t, m.SubmitKey(1, ps[1].key.PublicKey, nil), ErrUnknownParticipant)
	register(t, m, ps)

	joint, err := m.JointKey()
	require.NoError(t, err)
	assert.True(t, joint.Equal(dealing.PublicKey))

	_, err = m.Vote(rand.Reader, No)
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)

	submitShares(t, m, ps[2:])
	_, err = m.Finalize()
	assert.ErrorIs(t, err, elgamal.ErrNotEnoughShares)

	submitShares(t, m, ps[:1])
	winner, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, No, winner)
	assert.Equal(t, "threshold:2", m.Snapshot().Policy)
}

func TestInvalidOutcome(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 1)
	register(t, m, ps)

	ct, _, err := elgamal.Encrypt(rand.Reader, ps[0].key.PublicKey, new(saferith.Nat).SetUint64(3))
	require.NoError(t, err)
	require.NoError(t, m.ModifyVote(ct, ps[0].key.PublicKey))
	clock.Advance(25 * time.Hour)
	submitShares(t, m, ps)

	_, err = m.Finalize()
	assert.ErrorIs(t, err, ErrInvalidOutcome)
	assert.False(t, m.Snapshot().IsFinalized)
}

func TestConfig_Invalid(t *testing.T) {
	g := group.Default()
	dealing, err := threshold.Deal(rand.Reader, g, 2, party.Sequential(3))
	require.NoError(t, err)

	primitive, err := group.New(big.NewInt(23), big.NewInt(5))
	require.NoError(t, err)

	configs := map[string]Config{
		"primitive generator":    {Group: primitive},
		"negative window":        {RegistrationDelay: -time.Second},
		"joint key for all":      {JointKey: dealing.PublicKey},
		"threshold without key":  {Policy: elgamal.ThresholdRequired{Threshold: 2}},
		"threshold mismatch":     {Policy: elgamal.ThresholdRequired{Threshold: 3}, JointKey: dealing.PublicKey, Commitments: dealing.Commitments},
		"commitments of another": {Policy: elgamal.ThresholdRequired{Threshold: 2}, JointKey: dealing.Shares[0].Secret.PublicKey, Commitments: dealing.Commitments},
	}
	for name, config := range configs {
		_, err := New(config)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestConcurrentRegistration(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 8)

	var eg errgroup.Group
	for _, p := range ps {
		p := p
		eg.Go(func() error {
			return m.SubmitKey(p.id, p.key.PublicKey, nil)
		})
	}
	require.NoError(t, eg.Wait())
	assert.Len(t, m.Snapshot().PublicKeys, len(ps))

	_, err := m.Vote(rand.Reader, Yes)
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)

	ct, err := m.Ciphertext()
	require.NoError(t, err)
	var shares errgroup.Group
	for _, p := range ps {
		p := p
		shares.Go(func() error {
			share, err := elgamal.CreateDecryptionShare(ct, p.key)
			if err != nil {
				return err
			}
			share.ID = p.id
			return m.SubmitPartialDecrypt(share)
		})
	}
	require.NoError(t, shares.Wait())
	winner, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, Yes, winner)
}

// hookReader runs hook on the first read, then reads from crypto/rand.
type hookReader struct {
	once sync.Once
	hook func()
}

func (r *hookReader) Read(p []byte) (int, error) {
	r.once.Do(r.hook)
	return rand.Read(p)
}

func TestVote_KeyDuringEncryption(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 2)
	register(t, m, ps[:1])

	late := make(chan error, 1)
	reader := &hookReader{hook: func() {
		go func() { late <- m.SubmitKey(ps[1].id, ps[1].key.PublicKey, nil) }()
	}}
	_, err := m.Vote(reader, No)
	require.NoError(t, err)
	assert.ErrorIs(t, <-late, ErrKeySetFrozen)
	assert.Len(t, m.Snapshot().PublicKeys, 1)

	clock.Advance(25 * time.Hour)
	submitShares(t, m, ps[:1])
	winner, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, No, winner)
}

func TestModifyVote_StaleKey(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 2)
	register(t, m, ps[:1])

	stale, err := m.JointKey()
	require.NoError(t, err)
	ct, _, err := elgamal.Encrypt(rand.Reader, stale, Yes.Message())
	require.NoError(t, err)
	register(t, m, ps[1:])

	assert.ErrorIs(t, m.ModifyVote(ct, stale), ErrJointKeyChanged)
	assert.ErrorIs(t, m.ModifyVote(ct, nil), ErrJointKeyChanged)
	assert.Equal(t, KeysRegistered, m.Phase())
	_, err = m.Ciphertext()
	assert.ErrorIs(t, err, ErrNoVote)

	joint, err := m.JointKey()
	require.NoError(t, err)
	ct, _, err = elgamal.Encrypt(rand.Reader, joint, Yes.Message())
	require.NoError(t, err)
	require.NoError(t, m.ModifyVote(ct, joint))

	clock.Advance(25 * time.Hour)
	submitShares(t, m, ps)
	winner, err := m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, Yes, winner)
}

func TestVote_ConcurrentRegistration(t *testing.T) {
	clock := newClock()
	m := newMarket(t, clock, nil)
	ps := participants(t, group.Default(), 8)
	register(t, m, ps[:1])

	var (
		mu         sync.Mutex
		registered = []participant{ps[0]}
		eg         errgroup.Group
	)
	eg.Go(func() error {
		_, err := m.Vote(rand.Reader, Yes)
		return err
	})
	for _, p := range ps[1:] {
		p := p
		eg.Go(func() error {
			err := m.SubmitKey(p.id, p.key.PublicKey, nil)
			if errors.Is(err, ErrKeySetFrozen) {
				return nil
			}
			if err == nil {
				mu.Lock()
				registered = append(registered, p)
				mu.Unlock()
			}
			return err
		})
	}
	require.NoError(t, eg.Wait())
	assert.Len(t, m.Snapshot().PublicKeys, len(registered))

	clock.Advance(25 * time.Hour)
	submitShares(t, m, registered)
	winner, err := m.Finalize()
	require.NoError(t, err, "the vote must be encrypted under exactly the registered keys")
	assert.Equal(t, Yes, winner)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a, err := r.MakeMarket(Config{Description: "a", Clock: newClock()})
	require.NoError(t, err)
	b, err := r.MakeMarket(Config{Description: "b", Clock: newClock()})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, r.IDs(), 2)

	got, err := r.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)
	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownMarket)

	_, err = r.MakeMarket(Config{Duration: -time.Hour})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
