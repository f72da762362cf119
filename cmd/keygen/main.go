package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aquariusluo/creditscore/fhe/providers"
	"github.com/spf13/cobra"
)

const programName = "creditscore-keygen"

const defaultPaillierBits = 2048

// keyPair is printed as JSON; the decryption key is the value operators
// store as the custody key secret
type keyPair struct {
	Provider      string `json:"provider"`
	Curve         string `json:"curve,omitempty"`
	PublicKey     string `json:"public_key"`
	DecryptionKey string `json:"decryption_key"`
}

func render(cmd *cobra.Command, kp *keyPair) error {
	raw, err := json.MarshalIndent(kp, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return err
}

func elgamalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   providers.CiphertextProviderElGamal,
		Short: "Generate a bn254 exponential elgamal key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, sk, err := providers.GenerateElGamalKeyPair()
			if err != nil {
				return err
			}
			return render(cmd, &keyPair{
				Provider:      providers.CiphertextProviderElGamal,
				Curve:         "bn254",
				PublicKey:     hex.EncodeToString(pub),
				DecryptionKey: hex.EncodeToString(sk),
			})
		},
	}
}

func paillierCommand() *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:   providers.CiphertextProviderPaillier,
		Short: "Generate a paillier key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, sk, err := providers.GeneratePaillierKeyPair(bits)
			if err != nil {
				return err
			}
			return render(cmd, &keyPair{
				Provider:      providers.CiphertextProviderPaillier,
				PublicKey:     hex.EncodeToString(pub),
				DecryptionKey: hex.EncodeToString(sk),
			})
		},
	}
	cmd.Flags().IntVar(&bits, "bits", defaultPaillierBits, "modulus size in bits")
	return cmd
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           programName,
		Short:         "Generate ciphertext provider keys for the credit ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		elgamalCommand(),
		paillierCommand(),
	)
	return cmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", programName, err)
		os.Exit(1)
	}
}
