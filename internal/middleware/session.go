// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/panchsetu/internal/auth"
	"github.com/hitoshi/panchsetu/internal/metrics"
	"github.com/hitoshi/panchsetu/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "token"

const bearerPrefix = "Bearer "

// 認証ゲートの拒否理由（メトリクスのreasonラベル）
const (
	rejectMissing = "missing"
	rejectInvalid = "invalid"
	rejectRevoked = "revoked"
	rejectError   = "error"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIDを格納するためのキー。
var identityContextKey = contextKey("identity")

// Identity は認証ゲートを通過したリクエストの呼び出し元。
// ハンドラーはリクエストボディではなくこの値からユーザーを特定する。
type Identity struct {
	UserID    string
	Role      model.Role
	TokenID   string
	ExpiresAt time.Time
}

// Authenticator はトークンの検証に必要なインターフェース。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// TokenFromRequest はリクエストからセッショントークンを取り出す。
// Cookieを優先し、無い場合はAuthorization: Bearerヘッダーを使う。
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return ""
}

// NewAuthMiddleware はセッショントークンを検証し、Identityをコンテキストに注入するミドルウェアを返す。
// 検証はトークンのみで行い、アカウントストアには問い合わせない。
// 未認証リクエストには既存クライアントとの互換のためHTTP 200で
// {success:false, message:"Not Authorized. Login Again"} を返し、後続のハンドラーは呼ばない。
func NewAuthMiddleware(authenticator Authenticator, recorder metrics.Recorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. トークンを取得
			token := TokenFromRequest(r)
			if token == "" {
				rejectRequest(w, recorder, rejectMissing)
				return
			}

			// 2. 署名・有効期限・失効状態を検証
			claims, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				reason := rejectError
				switch {
				case errors.Is(err, auth.ErrInvalidToken):
					reason = rejectInvalid
				case errors.Is(err, auth.ErrTokenRevoked):
					reason = rejectRevoked
				default:
					slog.ErrorContext(r.Context(), "failed to authenticate session token",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				rejectRequest(w, recorder, reason)
				return
			}

			// 3. 認証済みIDをコンテキストに注入
			id := Identity{
				UserID:    claims.Subject,
				Role:      claims.Role,
				TokenID:   claims.ID,
				ExpiresAt: claims.ExpiresAt.Time,
			}
			annotateLog(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func rejectRequest(w http.ResponseWriter, recorder metrics.Recorder, reason string) {
	recorder.RecordGateRejection(reason)
	WriteErrorResponse(w, http.StatusOK, model.NewUnauthorizedError())
}

// IdentityFromContext はリクエストコンテキストから認証済みIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, fmt.Errorf("identity not found in context")
	}
	return id, nil
}

// ContextWithIdentity はコンテキストに認証済みIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
