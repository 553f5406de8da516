// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lanlobby/lanlobby/internal/identity"
)

// privateKey and publicKey sign and verify relay session tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TOKEN_EXPIRE_TIME_SEC indicates how many seconds until token expiration (0 => never).
	TOKEN_EXPIRE_TIME_SEC int
)

// parseTokenExpireTime reads the TOKEN_EXPIRE_TIME env var and sets TOKEN_EXPIRE_TIME_SEC accordingly.
func parseTokenExpireTime() {
	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		TOKEN_EXPIRE_TIME_SEC = 0
	} else {
		d, err := time.ParseDuration(duration)
		if err != nil {
			fmt.Printf("failed to parse token expire time: %v\n", err)
			os.Exit(1)
		}
		TOKEN_EXPIRE_TIME_SEC = int(d.Seconds())
	}
}

// Init generates a fresh ed25519 key pair at runtime and sets the token expiration.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ed25519 key pair: %v\n", err)
		os.Exit(1)
	}
	parseTokenExpireTime()
}

// InitFromPath reads ed25519 private/public keys from file and sets the token expiration.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	parseTokenExpireTime()
	return nil
}

// InitFromEnv wires the token keys to the pair stored under LANLOBBY_KEY_DIR,
// so separately started daemons mint and verify with the same keys. The first
// process to find the directory empty generates the pair and writes it for the
// others. Without the variable a process-local pair is generated, which only
// verifies tokens minted in the same process.
func InitFromEnv() error {
	dir := os.Getenv("LANLOBBY_KEY_DIR")
	if dir == "" {
		Init()
		return nil
	}

	privatePath := filepath.Join(dir, "session.key")
	publicPath := filepath.Join(dir, "session.pub")
	err := InitFromPath(privatePath, publicPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key dir: %w", err)
	}
	if err := os.WriteFile(privatePath, priv, 0o600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	if err := os.WriteFile(publicPath, pub, 0o644); err != nil {
		return fmt.Errorf("failed to write public key file: %w", err)
	}

	privateKey = priv
	publicKey = pub
	parseTokenExpireTime()
	return nil
}

// CreateToken mints a signed session token with "sub" = the peer id.
func CreateToken(peer identity.PeerID) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(peer), 10),
	}

	if TOKEN_EXPIRE_TIME_SEC > 0 {
		claims["exp"] = time.Now().Add(time.Duration(TOKEN_EXPIRE_TIME_SEC) * time.Second).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// VerifyToken validates a session token and returns the peer id it names.
func VerifyToken(tokenString string) (identity.PeerID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})

	if err != nil {
		return 0, fmt.Errorf("token parse error: %w", err)
	}
	if !t.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, fmt.Errorf("missing sub in token")
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("malformed peer id in token")
	}

	return identity.PeerID(id), nil
}
