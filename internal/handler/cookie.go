package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/panchsetu/internal/middleware"
)

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	// Production が真の場合、クロスサイトのフロントエンドから送信できるよう
	// Secure と SameSite=None を付与する。それ以外は SameSite=Strict。
	Production bool
	// MaxAge はCookieの有効期間（秒）。トークンの有効期間と一致させる。
	MaxAge int
}

// sessionCookie はセッションCookieを生成する。発行と削除で同じ属性を使う。
func (c CookieConfig) sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if c.Production {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Production,
		SameSite: sameSite,
	}
}

// setSessionCookie はトークンをCookieに設定する。
func (c CookieConfig) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	cookie := c.sessionCookie(token, c.MaxAge)
	cookie.Expires = expiresAt
	http.SetCookie(w, cookie)
}

// clearSessionCookie はセッションCookieを削除する。
func (c CookieConfig) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, c.sessionCookie("", -1))
}
