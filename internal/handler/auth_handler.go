package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/panchsetu/internal/auth"
	"github.com/hitoshi/panchsetu/internal/middleware"
	"github.com/hitoshi/panchsetu/internal/model"
)

// 成功時のメッセージ。既存クライアントがそのまま表示する。
const (
	msgPatientRegistered      = "You've registered successfully!!!"
	msgPatientLoggedIn        = "Login Successfull!!!"
	msgPractitionerRegistered = "User registered successfully!!!"
	msgPractitionerLoggedIn   = "User logged in successfully!!!"
	msgLoggedOut              = "Logged Out"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RegisterPatient(ctx context.Context, in auth.PatientRegistration) (*model.Session, error)
	RegisterPractitioner(ctx context.Context, in auth.PractitionerRegistration) (*model.Session, error)
	Login(ctx context.Context, role model.Role, email, password string) (*model.Session, error)
	Logout(ctx context.Context, token string) error
}

// loginRequest はログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthHandler はロール別の登録・ログインとログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// RegisterPatient は患者アカウントを登録し、セッションCookieを設定する。
// POST /api/auth/patient-register
func (h *AuthHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req auth.PatientRegistration
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.service.RegisterPatient(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.cookies.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeSuccess(w, map[string]any{"message": msgPatientRegistered, "user": session.User})
}

// LoginPatient は患者のログインを行い、セッションCookieを設定する。
// POST /api/auth/patient-login
func (h *AuthHandler) LoginPatient(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.login(w, r, model.RolePatient); !ok {
		return
	}
	writeSuccess(w, map[string]any{"message": msgPatientLoggedIn})
}

// RegisterPractitioner は施術者アカウントを登録し、セッションCookieを設定する。
// POST /api/auth/practitioner-register
func (h *AuthHandler) RegisterPractitioner(w http.ResponseWriter, r *http.Request) {
	var req auth.PractitionerRegistration
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.service.RegisterPractitioner(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.cookies.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeSuccess(w, map[string]any{"message": msgPractitionerRegistered, "user": session.User})
}

// LoginPractitioner は施術者のログインを行い、セッションCookieを設定する。
// POST /api/auth/practitioner-login
func (h *AuthHandler) LoginPractitioner(w http.ResponseWriter, r *http.Request) {
	session, ok := h.login(w, r, model.RolePractitioner)
	if !ok {
		return
	}
	writeSuccess(w, map[string]any{"message": msgPractitionerLoggedIn, "user": session.User})
}

// LoginAs はレコードモデルが未定義のロール（hospital, admin）のログイン口を返す。
// サービス層が未対応として失敗を返すため、Cookieは設定されない。
// POST /api/auth/hospital-login, /api/auth/admin-login
func (h *AuthHandler) LoginAs(role model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := h.login(w, r, role)
		if !ok {
			return
		}
		writeSuccess(w, map[string]any{"user": session.User})
	}
}

// login はロール共通のログイン処理。成功時はCookieを設定してtrueを返す。
// 失敗時はレスポンスを書き込み済み。
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, role model.Role) (*model.Session, bool) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	session, err := h.service.Login(r.Context(), role, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	h.cookies.setSessionCookie(w, session.Token, session.ExpiresAt)
	return session, true
}

// Logout はセッションCookieを削除する。認証は不要で、何度呼び出しても成功する。
// トークンが提示されていれば失効リストにも登録する。
// GET /api/common/logout, POST /api/auth/patient-logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			// 失効に失敗してもCookieはクリアする
			slog.ErrorContext(r.Context(), "failed to revoke session", slog.String("error", err.Error()))
		}
	}

	h.cookies.clearSessionCookie(w)
	writeSuccess(w, map[string]any{"message": msgLoggedOut})
}
