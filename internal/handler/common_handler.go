package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/panchsetu/internal/middleware"
	"github.com/hitoshi/panchsetu/internal/model"
	"github.com/hitoshi/panchsetu/internal/user"
)

// UserServiceInterface はユーザー情報ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, id string, role model.Role) (model.SafeProfile, error)
	GetPatientData(ctx context.Context, id string, role model.Role) (*user.PatientData, error)
}

// UserHandler は認証済みユーザーの情報を返すHTTPハンドラー。
// ユーザーはリクエストボディではなく認証ゲートが注入したIdentityから特定する。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// IsAuthenticated は認証ゲートを通過したことのみを返す。
// GET /api/common/is-auth
func (h *UserHandler) IsAuthenticated(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, nil)
}

// GetUserData は呼び出し元の公開プロフィールを返す。
// GET /api/common/getuserdata
func (h *UserHandler) GetUserData(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), id.UserID, id.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"user": profile})
}

// GetPatientData は患者ダッシュボード用の情報を返す。
// GET /api/patient/data
func (h *UserHandler) GetPatientData(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r)
	if !ok {
		return
	}

	data, err := h.service.GetPatientData(r.Context(), id.UserID, id.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"userData": data})
}

// identityOrReject はコンテキストから認証済みIDを取り出す。
// 認証ゲートの外で呼ばれた場合は未認証レスポンスを書き込む。
func identityOrReject(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusOK, model.NewUnauthorizedError())
		return middleware.Identity{}, false
	}
	return id, true
}
