package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/urfave/cli/v2"
)

// keyFile is the on-disk form of a key pair. PrivateKey is empty for public keys.
type keyFile struct {
	PrivateKey string `json:"privateKey,omitempty"`
	PublicKey  string `json:"publicKey"`
	// Proof is a proof of possession, bound to Context.
	Proof   []byte `json:"proof,omitempty"`
	Context string `json:"context,omitempty"`
	// ID is set for threshold key shares.
	ID uint16 `json:"id,omitempty"`
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// writeJSON writes v to path, or to w if path is empty.
func writeJSON(w io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadGroup(c *cli.Context) (*group.Parameters, error) {
	path := c.String("group")
	if path == "" {
		return group.Default(), nil
	}
	g := new(group.Parameters)
	if err := readJSON(path, g); err != nil {
		return nil, err
	}
	return g, nil
}

func loadPublicKey(g *group.Parameters, path string) (*elgamal.PublicKey, *keyFile, error) {
	var kf keyFile
	if err := readJSON(path, &kf); err != nil {
		return nil, nil, err
	}
	y, err := g.ParseElement(kf.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	key, err := elgamal.NewPublicKey(g, y)
	if err != nil {
		return nil, nil, err
	}
	return key, &kf, nil
}

func loadSecretKey(g *group.Parameters, path string) (*elgamal.SecretKey, *keyFile, error) {
	var kf keyFile
	if err := readJSON(path, &kf); err != nil {
		return nil, nil, err
	}
	if kf.PrivateKey == "" {
		return nil, nil, fmt.Errorf("%s: no private key", path)
	}
	x, err := g.ParseExponent(kf.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	sk, err := elgamal.NewSecretKey(g, x)
	if err != nil {
		return nil, nil, err
	}
	return sk, &kf, nil
}

func loadCiphertext(g *group.Parameters, path string) (*elgamal.Ciphertext, error) {
	ct := elgamal.Empty(g)
	if err := readJSON(path, ct); err != nil {
		return nil, err
	}
	return ct, nil
}

func loadShare(g *group.Parameters, path string) (*elgamal.DecryptionShare, error) {
	share := elgamal.EmptyShare(g)
	if err := readJSON(path, share); err != nil {
		return nil, err
	}
	return share, nil
}
