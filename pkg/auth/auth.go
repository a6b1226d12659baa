package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
)

var jwtAlgorithm = jwt.SigningMethodHS256

const (
	tokenTTL   = 24 * time.Hour
	bcryptCost = 12
)

var (
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidUnit      = errors.New("unit id must be non-empty and contain no dots")
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signer issues admin tokens and unit-scoped API keys
type Signer struct {
	jwtSecret    []byte
	masterSecret []byte
}

// NewSigner builds a Signer from the auth config
func NewSigner(cfg config.AuthConfig) *Signer {
	return &Signer{jwtSecret: []byte(cfg.JWTSecret), masterSecret: []byte(cfg.MasterSecret)}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for a user
func (s *Signer) CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken verifies a JWT token
func (s *Signer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateKey creates a signed API key for a guild unit: "<unit>.<nonce>.<signature>"
func (s *Signer) GenerateKey(unitID string) (string, error) {
	if unitID == "" || strings.Contains(unitID, ".") {
		return "", ErrInvalidUnit
	}
	body := unitID + "." + strings.ReplaceAll(uuid.NewString(), "-", "")
	return body + "." + s.sign(body), nil
}

// VerifyKey validates a key's signature and returns the unit it is bound to
func (s *Signer) VerifyKey(key string) (string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrInvalidKeyFormat
	}
	body := parts[0] + "." + parts[1]

	if !hmac.Equal([]byte(parts[2]), []byte(s.sign(body))) {
		return "", ErrInvalidSignature
	}
	return parts[0], nil
}

func (s *Signer) sign(body string) string {
	h := hmac.New(sha256.New, s.masterSecret)
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

// Preview shortens a key for display
func Preview(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// LookupAPIKey finds a stored key and stamps its last use
func LookupAPIKey(db *gorm.DB, key string) (*database.APIKey, error) {
	var apiKey database.APIKey
	if err := db.Where("key = ?", key).First(&apiKey).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	apiKey.LastUsed = &now
	if err := db.Model(&apiKey).Update("last_used", now).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// EnsureAdminExists creates the configured admin account when no admin exists yet
func EnsureAdminExists(db *gorm.DB, cfg config.AuthConfig, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	user := database.MasterUser{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	logger.Info("default admin user created", zap.String("username", cfg.AdminUsername))
	return nil
}
