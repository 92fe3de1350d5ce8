package market

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/party"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
	"github.com/encmarket/threshold-elgamal/pkg/threshold"
	zksch "github.com/encmarket/threshold-elgamal/pkg/zk/sch"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Market is the state of one encrypted-vote market.
//
// It checks the ordering of the protocol: keys are registered, then one vote is
// encrypted under their combination, then every participant submits a share
// once voting has closed, and finally the outcome is recovered.
// All methods are safe for concurrent use.
type Market struct {
	mu sync.Mutex

	id     string
	config Config
	log    zerolog.Logger

	createdAt                 time.Time
	keyRegistrationExpiration time.Time
	expiration                time.Time

	phase  Phase
	keys   map[party.ID]*elgamal.PublicKey
	vote   *elgamal.Ciphertext
	shares map[party.ID]*elgamal.DecryptionShare
	winner Choice
}

// New makes a market from config. Its windows start at the current time of config.Clock.
func New(config Config) (*Market, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	id := xid.New().String()
	now := config.Clock.Now()
	m := &Market{
		id:                        id,
		config:                    config,
		log:                       config.Logger.With().Str("market", id).Logger(),
		createdAt:                 now,
		keyRegistrationExpiration: now.Add(config.RegistrationDelay),
		expiration:                now.Add(config.RegistrationDelay + config.Duration),
		phase:                     ParametersFixed,
		keys:                      make(map[party.ID]*elgamal.PublicKey),
		shares:                    make(map[party.ID]*elgamal.DecryptionShare),
	}
	m.log.Info().Str("phase", m.phase.String()).Str("policy", config.Policy.String()).
		Msgf("market created: %s", config.Description)
	return m, nil
}

// ID returns the market's unique identifier.
func (m *Market) ID() string { return m.id }

// Config returns the configuration the market was made with.
func (m *Market) Config() Config { return m.config }

// PossessionContext is the context a participant's proof of possession must be bound to.
func (m *Market) PossessionContext(id party.ID) []byte {
	return append([]byte(m.id+"/"), id.Bytes()...)
}

func (m *Market) advance(to Phase) {
	if to > m.phase {
		m.phase = to
		m.log.Info().Str("phase", to.String()).Msg("phase changed")
	}
}

// SubmitKey registers the public key of participant id.
//
// For threshold markets key must be the participant's verification key.
// proof may be nil unless the market requires proofs of possession.
func (m *Market) SubmitKey(id party.ID, key *elgamal.PublicKey, proof *zksch.Proof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Recovered {
		return ErrFinalized
	}
	if m.vote != nil {
		return ErrKeySetFrozen
	}
	if !m.config.Clock.Now().Before(m.keyRegistrationExpiration) {
		return ErrRegistrationClosed
	}
	if id == 0 {
		return fmt.Errorf("market: %w", party.ErrZeroID)
	}
	if _, ok := m.keys[id]; ok {
		return ErrDuplicateKey
	}
	if key == nil || !key.Group().Equal(m.config.Group) {
		return fmt.Errorf("%w: key does not belong to the market group", elgamal.ErrInvalidInput)
	}
	if proof != nil || m.config.RequireKeyProofs {
		if err := key.VerifyPossession(proof, m.PossessionContext(id)); err != nil {
			return err
		}
	}
	if m.config.Commitments != nil {
		expected, err := threshold.VerificationKey(m.config.Commitments, m.config.Group, id)
		if err != nil {
			return err
		}
		if !expected.Equal(key) {
			return fmt.Errorf("%w: key is not the verification key of participant %v", ErrUnknownParticipant, id)
		}
	}

	m.keys[id] = key
	m.advance(KeysRegistered)
	m.log.Info().Uint16("participant", uint16(id)).Int("keys", len(m.keys)).Msg("key registered")
	return nil
}

func (m *Market) sortedIDs() party.IDSlice {
	ids := make(party.IDSlice, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	ids.Sort()
	return ids
}

// JointKey returns the key votes must be encrypted under.
func (m *Market) JointKey() (*elgamal.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jointKey()
}

func (m *Market) jointKey() (*elgamal.PublicKey, error) {
	if m.config.JointKey != nil {
		return m.config.JointKey, nil
	}
	if len(m.keys) == 0 {
		return nil, ErrNoKeys
	}
	ids := m.sortedIDs()
	keys := make([]*elgamal.PublicKey, len(ids))
	for i, id := range ids {
		keys[i] = m.keys[id]
	}
	return elgamal.CombinePublicKeys(m.config.Group, keys)
}

// ModifyVote stores ct as the market's encrypted vote, replacing any previous one.
// key is the joint key ct was encrypted under, as returned by JointKey. If a key
// was registered since, ErrJointKeyChanged is returned and ct must be
// encrypted again.
//
// The first vote freezes the set of registered keys.
func (m *Market) ModifyVote(ct *elgamal.Ciphertext, key *elgamal.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modifyVote(ct, key)
}

func (m *Market) modifyVote(ct *elgamal.Ciphertext, key *elgamal.PublicKey) error {
	if m.phase == Recovered {
		return ErrFinalized
	}
	if !m.config.Clock.Now().Before(m.expiration) {
		return ErrVotingClosed
	}
	if len(m.keys) == 0 {
		return ErrNoKeys
	}
	joint, err := m.jointKey()
	if err != nil {
		return err
	}
	if ct == nil || !ct.Valid() || !ct.Group().Equal(m.config.Group) {
		return fmt.Errorf("%w: ciphertext does not belong to the market group", elgamal.ErrInvalidInput)
	}
	if !joint.Equal(key) {
		return ErrJointKeyChanged
	}
	m.vote = ct
	m.advance(VoteEncrypted)
	m.log.Info().Int("keys", len(m.keys)).Msg("vote modified")
	return nil
}

// Vote encrypts choice under the current joint key and stores it, without
// letting a key be registered in between. The encryption nonce is returned
// for relaying.
//
// rand is read with the market locked, and must not call back into it.
func (m *Market) Vote(rand io.Reader, choice Choice) (*elgamal.Relay, error) {
	if !choice.Valid() {
		return nil, fmt.Errorf("market: invalid choice %v", choice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	joint, err := m.jointKey()
	if err != nil {
		return nil, err
	}
	ct, r, err := elgamal.Encrypt(rand, joint, choice.Message())
	if err != nil {
		return nil, err
	}
	if err = m.modifyVote(ct, joint); err != nil {
		return nil, err
	}
	return &elgamal.Relay{Ciphertext: ct, Randomness: r}, nil
}

// Ciphertext returns the encrypted vote.
func (m *Market) Ciphertext() (*elgamal.Ciphertext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vote == nil {
		return nil, ErrNoVote
	}
	return m.vote, nil
}

// SubmitPartialDecrypt records the decryption share of participant share.ID.
func (m *Market) SubmitPartialDecrypt(share *elgamal.DecryptionShare) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Recovered {
		return ErrFinalized
	}
	if m.vote == nil {
		return ErrNoVote
	}
	if m.config.Clock.Now().Before(m.expiration) {
		return ErrVotingOpen
	}
	if share == nil {
		return fmt.Errorf("%w: nil share", elgamal.ErrInvalidInput)
	}
	key, ok := m.keys[share.ID]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownParticipant, share.ID)
	}
	if _, ok = m.shares[share.ID]; ok {
		return ErrDuplicateShare
	}
	if share.Group() == nil || !share.Group().Equal(m.config.Group) || !m.config.Group.IsElement(share.Value) {
		return fmt.Errorf("%w: share does not belong to the market group", elgamal.ErrInvalidInput)
	}
	if share.Proof != nil || m.config.RequireShareProofs {
		if err := elgamal.VerifyDecryptionShare(key, m.vote, share); err != nil {
			return err
		}
	}

	m.shares[share.ID] = share
	m.advance(SharesCollecting)
	m.log.Info().Uint16("participant", uint16(share.ID)).Int("shares", len(m.shares)).Msg("decryption share submitted")
	return nil
}

// Finalize recovers the vote from the submitted shares and records the winner.
//
// With elgamal.AllRequired every registered participant must have submitted
// a share, otherwise elgamal.ErrNotEnoughShares is returned and the market
// stays open for more shares.
func (m *Market) Finalize() (Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Recovered {
		return 0, ErrFinalized
	}
	if m.vote == nil {
		return 0, ErrNoVote
	}
	if m.config.Clock.Now().Before(m.expiration) {
		return 0, ErrVotingOpen
	}
	if _, all := m.config.Policy.(elgamal.AllRequired); all && len(m.shares) != len(m.keys) {
		return 0, fmt.Errorf("%w: got %d of %d", elgamal.ErrNotEnoughShares, len(m.shares), len(m.keys))
	}

	shares := make([]*elgamal.DecryptionShare, 0, len(m.shares))
	for _, id := range m.sortedIDs() {
		if share, ok := m.shares[id]; ok {
			shares = append(shares, share)
		}
	}
	message, err := elgamal.ThresholdDecrypt(m.vote, m.config.Policy, shares)
	if err != nil {
		m.log.Warn().Err(err).Msg("recovery failed")
		return 0, err
	}
	winner, err := ChoiceFromMessage(message)
	if err != nil {
		m.log.Warn().Err(err).Msg("recovered message is not a choice")
		return 0, err
	}

	m.winner = winner
	m.advance(Recovered)
	m.log.Info().Str("winner", winner.String()).Msg("market finalized")
	return winner, nil
}

// VerifyShares checks the proofs of every submitted share in parallel on pl.
func (m *Market) VerifyShares(pl *pool.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vote == nil {
		return ErrNoVote
	}
	ids := make(party.IDSlice, 0, len(m.shares))
	for id := range m.shares {
		ids = append(ids, id)
	}
	ids.Sort()
	keys := make([]*elgamal.PublicKey, len(ids))
	shares := make([]*elgamal.DecryptionShare, len(ids))
	for i, id := range ids {
		keys[i], shares[i] = m.keys[id], m.shares[id]
	}
	return elgamal.VerifyDecryptionShares(pl, m.vote, keys, shares)
}

// State is a read-only view of a market, with the fields of the market contract.
type State struct {
	ID                        string            `json:"id"`
	Description               string            `json:"description"`
	Phase                     string            `json:"phase"`
	Policy                    string            `json:"policy"`
	KeyRegistrationExpiration time.Time         `json:"keyRegistrationExpiration"`
	Expiration                time.Time         `json:"expiration"`
	C1                        string            `json:"c1,omitempty"`
	C2                        string            `json:"c2,omitempty"`
	IsFinalized               bool              `json:"isFinalized"`
	Winner                    string            `json:"winner,omitempty"`
	PublicKeys                map[string]string `json:"publicKeys"`
	PartialDecrypts           map[string]string `json:"partialDecripts"`
}

// Snapshot returns the current state of the market.
func (m *Market) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		ID:                        m.id,
		Description:               m.config.Description,
		Phase:                     m.phase.String(),
		Policy:                    m.config.Policy.String(),
		KeyRegistrationExpiration: m.keyRegistrationExpiration,
		Expiration:                m.expiration,
		IsFinalized:               m.phase == Recovered,
		PublicKeys:                make(map[string]string, len(m.keys)),
		PartialDecrypts:           make(map[string]string, len(m.shares)),
	}
	if m.vote != nil {
		s.C1 = group.Format(m.vote.C1)
		s.C2 = group.Format(m.vote.C2)
	}
	if s.IsFinalized {
		s.Winner = m.winner.String()
	}
	for id, key := range m.keys {
		s.PublicKeys[id.String()] = key.String()
	}
	for id, share := range m.shares {
		s.PartialDecrypts[id.String()] = share.Value.Big().String()
	}
	return s
}

// Phase returns the current lifecycle phase.
func (m *Market) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Registry holds every market made through it, by ID.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market
}

func NewRegistry() *Registry {
	return &Registry{markets: make(map[string]*Market)}
}

// MakeMarket creates and stores a new market.
func (r *Registry) MakeMarket(config Config) (*Market, error) {
	m, err := New(config)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.markets[m.id] = m
	r.mu.Unlock()
	return m, nil
}

// Get returns the market with the given ID.
func (r *Registry) Get(id string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, id)
	}
	return m, nil
}

// IDs returns the IDs of all markets, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
