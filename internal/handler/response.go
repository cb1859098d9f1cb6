// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/panchsetu/internal/middleware"
	"github.com/hitoshi/panchsetu/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// decodeJSON はリクエストボディをvにデコードする。
// 空のボディは空オブジェクトとして扱い、必須項目の検証はサービス層に任せる。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return model.NewValidationError(model.MsgMalformedBody)
	}
	return nil
}

// writeSuccess は {success:true, ...} 形式のレスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}

// handleServiceError はサービス層から返されたエラーを失敗レスポンスに変換する。
// 既存クライアントはステータスコードではなくsuccessフラグで判定するため、常に200で返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, http.StatusOK, apiErr)
		return
	}

	// APIError以外のエラーは詳細をログのみに記録する
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, http.StatusOK, model.NewInternalError())
}
