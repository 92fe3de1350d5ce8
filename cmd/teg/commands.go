package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/AlecAivazis/survey/v2"
	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/market"
	"github.com/encmarket/threshold-elgamal/pkg/party"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
	zksch "github.com/encmarket/threshold-elgamal/pkg/zk/sch"
	"github.com/urfave/cli/v2"
)

var outFlag = &cli.StringFlag{
	Name:    "out",
	Aliases: []string{"o"},
	Usage:   "write to `FILE` instead of stdout",
}

var paramsCommand = &cli.Command{
	Name:  "params",
	Usage: "print group parameters, or generate a new safe-prime group",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "bits", Usage: "generate a fresh safe prime of this size"},
		&cli.StringFlag{Name: "seed", Usage: "derive the generator of the selected group from `SEED`"},
		&cli.IntFlag{Name: "workers", Value: 4, Usage: "workers searching for a safe prime"},
		outFlag,
	},
	Action: func(c *cli.Context) error {
		log := loggerFrom(c)
		var (
			g   *group.Parameters
			err error
		)
		if bits := c.Int("bits"); bits > 0 {
			pl := pool.NewPool(c.Int("workers"))
			log.Info().Int("bits", bits).Int("workers", pl.Workers()).Msg("searching for a safe prime")
			g, err = group.Generate(rand.Reader, bits, pl)
		} else {
			g, err = loadGroup(c)
		}
		if err != nil {
			return err
		}
		if seed := c.String("seed"); seed != "" {
			if g, err = group.DeriveGenerator(g.P().Big(), []byte(seed)); err != nil {
				return err
			}
		}
		if !g.Secure() {
			log.Warn().Int("bits", g.Bits()).Msg("group is too small for real use")
		}
		log.Debug().Bool("primeOrder", g.PrimeOrder()).Int("bits", g.Bits()).Msg("group ready")
		return writeJSON(c.App.Writer, c.String("out"), g)
	},
}

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "generate a key pair",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "id", Usage: "participant id stored with the key"},
		&cli.StringFlag{Name: "context", Usage: "attach a proof of possession bound to `CONTEXT`"},
		outFlag,
	},
	Action: func(c *cli.Context) error {
		g, err := loadGroup(c)
		if err != nil {
			return err
		}
		public, secret, err := elgamal.KeyGen(rand.Reader, g)
		if err != nil {
			return err
		}
		if c.Uint("id") > 1<<16-1 {
			return fmt.Errorf("keygen: id %d does not fit in 16 bits", c.Uint("id"))
		}
		kf := keyFile{
			PrivateKey: group.Format(secret.Exponent()),
			PublicKey:  public.String(),
			ID:         uint16(c.Uint("id")),
		}
		if ctx := c.String("context"); ctx != "" {
			proof, err := secret.ProvePossession(rand.Reader, []byte(ctx))
			if err != nil {
				return err
			}
			if kf.Proof, err = proof.MarshalBinary(); err != nil {
				return err
			}
			kf.Context = ctx
		}
		loggerFrom(c).Debug().Uint16("participant", kf.ID).Msg("key generated")
		return writeJSON(c.App.Writer, c.String("out"), kf)
	},
}

var combineCommand = &cli.Command{
	Name:      "combine",
	Usage:     "combine public keys into the joint key",
	ArgsUsage: "KEY_FILE...",
	Flags:     []cli.Flag{outFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return errors.New("combine: no key files")
		}
		g, err := loadGroup(c)
		if err != nil {
			return err
		}
		keys := make([]*elgamal.PublicKey, 0, c.NArg())
		for _, path := range c.Args().Slice() {
			key, kf, err := loadPublicKey(g, path)
			if err != nil {
				return err
			}
			if len(kf.Proof) > 0 {
				proof := zksch.Empty(g)
				if err = proof.UnmarshalBinary(kf.Proof); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err = key.VerifyPossession(proof, []byte(kf.Context)); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			keys = append(keys, key)
		}
		joint, err := elgamal.CombinePublicKeys(g, keys)
		if err != nil {
			return err
		}
		loggerFrom(c).Info().Int("keys", len(keys)).Msg("public keys combined")
		return writeJSON(c.App.Writer, c.String("out"), keyFile{PublicKey: joint.String()})
	},
}

// askVote prompts for a vote on the terminal.
var askVote = func() (market.Choice, error) {
	var answer string
	prompt := &survey.Select{
		Message: "Your vote:",
		Options: []string{market.Yes.String(), market.No.String()},
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return 0, err
	}
	return market.ParseChoice(answer)
}

var encryptCommand = &cli.Command{
	Name:  "encrypt",
	Usage: "encrypt a vote or a message under a public key",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "key", Required: true, Usage: "public key `FILE`"},
		&cli.StringFlag{Name: "vote", Usage: "yes or no; prompted for when neither --vote nor --message is set"},
		&cli.StringFlag{Name: "message", Usage: "decimal message in [0, p-1]"},
		&cli.BoolFlag{Name: "relay", Usage: "write the relay payload, which includes the nonce"},
		&cli.UintFlag{Name: "task", Usage: "task definition id of the relay payload"},
		outFlag,
	},
	Action: func(c *cli.Context) error {
		g, err := loadGroup(c)
		if err != nil {
			return err
		}
		public, _, err := loadPublicKey(g, c.String("key"))
		if err != nil {
			return err
		}
		m, err := message(c, g)
		if err != nil {
			return err
		}
		ct, r, err := elgamal.Encrypt(rand.Reader, public, m)
		if err != nil {
			return err
		}
		if c.Bool("relay") {
			if c.Uint("task") > 1<<16-1 {
				return fmt.Errorf("encrypt: task %d does not fit in 16 bits", c.Uint("task"))
			}
			relay := &elgamal.Relay{Ciphertext: ct, Randomness: r, TaskDefinitionID: uint16(c.Uint("task"))}
			return writeJSON(c.App.Writer, c.String("out"), relay)
		}
		return writeJSON(c.App.Writer, c.String("out"), ct)
	},
}

func message(c *cli.Context, g *group.Parameters) (m *saferith.Nat, err error) {
	if s := c.String("message"); s != "" {
		if c.IsSet("vote") {
			return nil, errors.New("encrypt: --vote and --message are exclusive")
		}
		return parseMessage(g, s)
	}
	var choice market.Choice
	if s := c.String("vote"); s != "" {
		choice, err = market.ParseChoice(s)
	} else {
		choice, err = askVote()
	}
	if err != nil {
		return nil, err
	}
	return choice.Message(), nil
}

var shareCommand = &cli.Command{
	Name:  "share",
	Usage: "compute a decryption share of a ciphertext",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "key", Required: true, Usage: "key pair `FILE`"},
		&cli.StringFlag{Name: "ciphertext", Required: true, Usage: "ciphertext `FILE`"},
		&cli.BoolFlag{Name: "prove", Value: true, Usage: "attach a proof of correct decryption"},
		outFlag,
	},
	Action: func(c *cli.Context) error {
		g, err := loadGroup(c)
		if err != nil {
			return err
		}
		sk, kf, err := loadSecretKey(g, c.String("key"))
		if err != nil {
			return err
		}
		ct, err := loadCiphertext(g, c.String("ciphertext"))
		if err != nil {
			return err
		}
		var share *elgamal.DecryptionShare
		if c.Bool("prove") {
			share, err = elgamal.ProveDecryptionShare(rand.Reader, ct, sk)
		} else {
			share, err = elgamal.CreateDecryptionShare(ct, sk)
		}
		if err != nil {
			return err
		}
		share.ID = party.ID(kf.ID)
		return writeJSON(c.App.Writer, c.String("out"), share)
	},
}

type recovered struct {
	Message string `json:"message"`
	Vote    string `json:"vote,omitempty"`
}

var recoverCommand = &cli.Command{
	Name:      "recover",
	Usage:     "combine decryption shares and recover the message",
	ArgsUsage: "SHARE_FILE...",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "ciphertext", Required: true, Usage: "ciphertext `FILE`"},
		&cli.StringFlag{Name: "policy", Value: "all", Usage: "all, or threshold:T"},
		&cli.StringSliceFlag{Name: "verify", Usage: "public key `FILE`s, in share order, to check share proofs against"},
		outFlag,
	},
	Action: func(c *cli.Context) error {
		g, err := loadGroup(c)
		if err != nil {
			return err
		}
		policy, err := elgamal.ParsePolicy(c.String("policy"))
		if err != nil {
			return err
		}
		ct, err := loadCiphertext(g, c.String("ciphertext"))
		if err != nil {
			return err
		}
		shares := make([]*elgamal.DecryptionShare, 0, c.NArg())
		for _, path := range c.Args().Slice() {
			share, err := loadShare(g, path)
			if err != nil {
				return err
			}
			shares = append(shares, share)
		}
		if paths := c.StringSlice("verify"); len(paths) > 0 {
			keys := make([]*elgamal.PublicKey, 0, len(paths))
			for _, path := range paths {
				key, _, err := loadPublicKey(g, path)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}
			if err = elgamal.VerifyDecryptionShares(nil, ct, keys, shares); err != nil {
				return err
			}
		}
		m, err := elgamal.ThresholdDecrypt(ct, policy, shares)
		if err != nil {
			return err
		}
		out := recovered{Message: group.Format(m)}
		if choice, err := market.ChoiceFromMessage(m); err == nil {
			out.Vote = choice.String()
		}
		loggerFrom(c).Info().Str("policy", policy.String()).Int("shares", len(shares)).Msg("message recovered")
		return writeJSON(c.App.Writer, c.String("out"), out)
	},
}

// parseMessage accepts a decimal message in [0, p-1].
func parseMessage(g *group.Parameters, s string) (*saferith.Nat, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: message %q is not a non-negative decimal integer", elgamal.ErrInvalidInput, s)
	}
	if v.Cmp(g.P().Big()) >= 0 {
		return nil, elgamal.ErrMessageTooLarge
	}
	return new(saferith.Nat).SetBig(v, g.Bits()), nil
}
