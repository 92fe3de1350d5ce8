package main

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/market"
	"github.com/encmarket/threshold-elgamal/pkg/party"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
	"github.com/encmarket/threshold-elgamal/pkg/threshold"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// demoClock only moves when told to, so the demo can skip over the market windows.
type demoClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *demoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *demoClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type demoParty struct {
	id     party.ID
	secret *elgamal.SecretKey
}

var demoCommand = &cli.Command{
	Name:  "demo",
	Usage: "run a market from key registration to the recovered vote",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "participants", Aliases: []string{"n"}, Value: 3},
		&cli.IntFlag{Name: "threshold", Aliases: []string{"t"}, Usage: "deal a t-of-n key instead of combining independent keys"},
		&cli.StringFlag{Name: "vote", Value: "yes"},
		&cli.IntFlag{Name: "workers", Value: 4, Usage: "workers verifying decryption shares"},
		outFlag,
	},
	Action: func(c *cli.Context) error {
		g, err := loadGroup(c)
		if err != nil {
			return err
		}
		choice, err := market.ParseChoice(c.String("vote"))
		if err != nil {
			return err
		}
		n, t := c.Int("participants"), c.Int("threshold")
		if n < 1 || n > 1<<15 {
			return errors.New("demo: participants must be in [1, 32768]")
		}
		clock := &demoClock{now: time.Now()}
		config := market.Config{
			Description:        "demo market",
			Group:              g,
			RegistrationDelay:  time.Hour,
			Duration:           24 * time.Hour,
			RequireKeyProofs:   true,
			RequireShareProofs: true,
			Clock:              clock,
			Logger:             loggerFrom(c),
		}
		parties, err := demoParties(g, n, t, &config)
		if err != nil {
			return err
		}

		m, err := market.NewRegistry().MakeMarket(config)
		if err != nil {
			return err
		}
		if err = registerKeys(m, parties); err != nil {
			return err
		}

		relay, err := m.Vote(rand.Reader, choice)
		if err != nil {
			return err
		}
		if err = checkRelay(m, relay, loggerFrom(c)); err != nil {
			return err
		}

		clock.Advance(config.RegistrationDelay + config.Duration)
		if t > 0 {
			parties = parties[:t]
		}
		if err = submitShares(m, parties); err != nil {
			return err
		}
		pl := pool.NewPool(c.Int("workers"))
		if err = m.VerifyShares(pl); err != nil {
			return err
		}
		if _, err = m.Finalize(); err != nil {
			return err
		}
		return writeJSON(c.App.Writer, c.String("out"), m.Snapshot())
	},
}

// demoParties creates the participants' keys. With t > 0 they are the shares
// of a dealt key, and config is set up for threshold recovery.
func demoParties(g *group.Parameters, n, t int, config *market.Config) ([]demoParty, error) {
	ids := party.Sequential(n)
	parties := make([]demoParty, n)
	if t == 0 {
		for i, id := range ids {
			_, secret, err := elgamal.KeyGen(rand.Reader, g)
			if err != nil {
				return nil, err
			}
			parties[i] = demoParty{id: id, secret: secret}
		}
		return parties, nil
	}

	dealing, err := threshold.Deal(rand.Reader, g, t, ids)
	if err != nil {
		return nil, err
	}
	for i, share := range dealing.Shares {
		parties[i] = demoParty{id: share.ID, secret: share.Secret}
	}
	config.Policy = elgamal.ThresholdRequired{Threshold: t}
	config.JointKey = dealing.PublicKey
	config.Commitments = dealing.Commitments
	return parties, nil
}

// registerKeys has every participant register its key concurrently.
func registerKeys(m *market.Market, parties []demoParty) error {
	var eg errgroup.Group
	for _, p := range parties {
		p := p
		eg.Go(func() error {
			proof, err := p.secret.ProvePossession(rand.Reader, m.PossessionContext(p.id))
			if err != nil {
				return err
			}
			return m.SubmitKey(p.id, p.secret.PublicKey, proof)
		})
	}
	return eg.Wait()
}

func submitShares(m *market.Market, parties []demoParty) error {
	ct, err := m.Ciphertext()
	if err != nil {
		return err
	}
	var eg errgroup.Group
	for _, p := range parties {
		p := p
		eg.Go(func() error {
			share, err := elgamal.ProveDecryptionShare(rand.Reader, ct, p.secret)
			if err != nil {
				return err
			}
			share.ID = p.id
			return m.SubmitPartialDecrypt(share)
		})
	}
	return eg.Wait()
}

// checkRelay opens the relay payload the way an executor would.
func checkRelay(m *market.Market, relay *elgamal.Relay, log *zerolog.Logger) error {
	joint, err := m.JointKey()
	if err != nil {
		return err
	}
	msg, err := relay.Open(joint)
	if err != nil {
		return err
	}
	choice, err := market.ChoiceFromMessage(msg)
	if err != nil {
		return err
	}
	log.Debug().Str("market", m.ID()).Str("vote", choice.String()).Msg("relay payload opened")
	return nil
}
