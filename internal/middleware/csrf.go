package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/panchsetu/internal/model"
)

// msgOriginNotAllowed は許可されていないオリジンからの状態変更リクエストに返す文言。
const msgOriginNotAllowed = "Request origin is not allowed"

// NewOriginGuardMiddleware はクロスサイトからの状態変更リクエストを拒否するミドルウェアを返す。
// 本番環境のセッションCookieはSameSite=Noneで送信されるため、Cookieだけに頼らずオリジンを検証する。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証しない。
// 状態変更メソッドは、Originヘッダーがあれば許可リストに含まれることを、
// 無ければSec-Fetch-Siteがcross-siteでないことを要求する。
// ブラウザ以外のクライアント（どちらのヘッダーも送らない）は通過させる。
func NewOriginGuardMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowed := newOriginSet(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" && !allowed.allows(origin) {
				refuseOrigin(w, r, origin)
				return
			}
			if origin == "" && r.Header.Get("Sec-Fetch-Site") == "cross-site" {
				refuseOrigin(w, r, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func refuseOrigin(w http.ResponseWriter, r *http.Request, origin string) {
	slog.Warn("cross-site request refused",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("origin", origin),
	)
	WriteErrorResponse(w, http.StatusForbidden, model.NewValidationError(msgOriginNotAllowed))
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
