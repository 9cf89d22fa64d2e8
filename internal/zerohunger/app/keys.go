package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/zerohunger/pkg/cryptox"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
)

// sessionIssuer is the iss claim on session tokens.
const sessionIssuer = "zerohunger"

// InitSessionKeys loads the Ed25519 key that signs session tokens, creating
// it on first start. Keeping it on disk lets sessions survive a restart.
func InitSessionKeys(path string, logger *slog.Logger) (*jwtx.EdDSASigner, *jwtx.KeySet, jwtx.Verifier, error) {
	priv, err := cryptox.LoadOrGenerateEd25519Key(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load session key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA(priv)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create session signer: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to register session key: %w", err)
	}

	logger.Info("session signing key loaded", "kid", signer.KID(), "path", path)
	return signer, keys, jwtx.NewVerifierEdDSA(keys, sessionIssuer), nil
}
