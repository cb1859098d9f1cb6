package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/panchsetu/internal/model"
)

// DefaultTokenTTL はセッショントークンの有効期間。発行後の延長は行わない。
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken は署名不一致・形式不正・期限切れのいずれかでトークンを信用できないことを示す。
var ErrInvalidToken = errors.New("invalid session token")

// TokenConfig はトークン発行者の設定。起動時に1回だけ構築し、実行中に変更しない。
type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// Claims はセッショントークンに含まれるクレーム。
// ロールをIDと一緒に保持するため、検証側は複数コレクションを探索せずにユーザーを解決できる。
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名付きのセッショントークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenIssuer はTokenIssuerを生成する。シークレットが空の場合はエラーを返す。
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	i := &TokenIssuer{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	return i, nil
}

// TTL はトークンの有効期間を返す。
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue は subjectID と role を束縛したトークンを発行し、トークン文字列と有効期限を返す。
func (i *TokenIssuer) Issue(subjectID string, role model.Role) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("subject ID is required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	// NumericDateは秒精度で保存されるため、返却する有効期限も合わせる
	return token, claims.ExpiresAt.Time, nil
}

// Verify はトークンを検証してクレームを返す。
// 検証に失敗した場合は理由を問わずErrInvalidTokenをラップして返す。
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}

	return claims, nil
}
