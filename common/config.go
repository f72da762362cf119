package common

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
	"github.com/provideplatform/provide-go/api/vault"
	"github.com/provideplatform/provide-go/common/util"
)

const defaultCiphertextProvider = "elgamal"
const defaultCurve = "bn254"
const defaultListenPort = "8080"
const defaultStoreProvider = "memory"

var (
	// Log is the configured logger
	Log *logger.Logger

	// ConsumeNATSStreamingSubscriptions is true when this instance should run the NATS consumers
	ConsumeNATSStreamingSubscriptions bool

	// PublishNotifications is true when ledger events should be published to NATS
	PublishNotifications bool

	// CiphertextProvider is the configured ciphertext capability provider, i.e. elgamal
	CiphertextProvider string

	// Curve is the curve used by curve-based ciphertext providers
	Curve string

	// CiphertextPublicKey is the public key material handed to the ciphertext provider
	CiphertextPublicKey []byte

	// CustodyDecryptionKey is the key material used to serve authorized score views
	CustodyDecryptionKey []byte

	// StoreProvider is the record store provider, i.e. memory or postgres
	StoreProvider string

	// ListenAddr is the address the API listens on
	ListenAddr string
)

func init() {
	godotenv.Load()

	requireLogger()
	requireLedgerConfig()
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("creditscore", lvl, endpoint)
}

func requireLedgerConfig() {
	ConsumeNATSStreamingSubscriptions = strings.ToLower(os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS")) == "true"
	PublishNotifications = strings.ToLower(os.Getenv("LEDGER_PUBLISH_NOTIFICATIONS")) == "true"

	CiphertextProvider = os.Getenv("LEDGER_CIPHERTEXT_PROVIDER")
	if CiphertextProvider == "" {
		CiphertextProvider = defaultCiphertextProvider
	}

	Curve = os.Getenv("LEDGER_CURVE")
	if Curve == "" {
		Curve = defaultCurve
	}

	StoreProvider = os.Getenv("LEDGER_STORE_PROVIDER")
	if StoreProvider == "" {
		StoreProvider = defaultStoreProvider
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultListenPort
	}
	ListenAddr = fmt.Sprintf("0.0.0.0:%s", port)

	var err error
	if os.Getenv("LEDGER_CIPHERTEXT_PUBLIC_KEY") != "" {
		CiphertextPublicKey, err = hex.DecodeString(os.Getenv("LEDGER_CIPHERTEXT_PUBLIC_KEY"))
		if err != nil {
			Log.Panicf("failed to decode LEDGER_CIPHERTEXT_PUBLIC_KEY as hex; %s", err.Error())
		}
	}

	if os.Getenv("LEDGER_CUSTODY_DECRYPTION_KEY") != "" {
		CustodyDecryptionKey, err = hex.DecodeString(os.Getenv("LEDGER_CUSTODY_DECRYPTION_KEY"))
		if err != nil {
			Log.Panicf("failed to decode LEDGER_CUSTODY_DECRYPTION_KEY as hex; %s", err.Error())
		}
	}
}

// RequireCustodyKey resolves the custody decryption key from the configured vault
// secret when it was not provided directly in the environment
func RequireCustodyKey() {
	if len(CustodyDecryptionKey) > 0 {
		return
	}

	vaultID := os.Getenv("LEDGER_CUSTODY_VAULT_ID")
	secretID := os.Getenv("LEDGER_CUSTODY_KEY_SECRET_ID")
	if vaultID == "" || secretID == "" {
		Log.Debug("no custody decryption key configured; authorized score views will be unavailable")
		return
	}

	util.RequireVault()

	secret, err := vault.FetchSecret(
		util.DefaultVaultAccessJWT,
		vaultID,
		secretID,
		map[string]interface{}{},
	)
	if err != nil {
		Log.Panicf("failed to fetch custody decryption key from vault %s; %s", vaultID, err.Error())
	}

	CustodyDecryptionKey, err = hex.DecodeString(*secret.Value)
	if err != nil {
		Log.Panicf("failed to decode custody decryption key secret from hex; %s", err.Error())
	}

	Log.Debugf("resolved custody decryption key from vault %s", vaultID)
}
