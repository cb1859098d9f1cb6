package model

import "fmt"

// ErrorKind はエラーの分類を表す。
type ErrorKind string

// エラー分類
const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindAlreadyExists     ErrorKind = "ALREADY_EXISTS"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidCredential ErrorKind = "INVALID_CREDENTIAL"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
	KindRateLimited       ErrorKind = "RATE_LIMITED"
)

// APIError はAPI境界で {success:false, message} に変換されるドメインエラー。
// Messageは既存クライアントがそのまま表示する文言。
type APIError struct {
	Kind    ErrorKind
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// 既存クライアントとの互換のため、メッセージ文言は旧実装のものをそのまま使用する。
const (
	MsgPatientDetailsRequired      = "Please provide all details..."
	MsgPractitionerDetailsRequired = "Name, Email and Password is required!!!"
	MsgCredentialsRequired         = "Email and Password is required!!!"
	MsgPatientAlreadyExists        = "User already exists..."
	MsgPractitionerAlreadyExists   = "User already exists!!!"
	MsgPatientNotRegistered        = "User is not registerd!!!"
	MsgPractitionerNotFound        = "User not found!!!"
	MsgUserNotFound                = "User not found"
	MsgInvalidPassword             = "Invalid Password!!!"
	MsgNotAuthorized               = "Not Authorized. Login Again"
	MsgInternal                    = "Something went wrong. Please try again later."
	MsgMalformedBody               = "Invalid request body"
	MsgValueTooLong                = "Some of the details are too long"
	MsgTooManyRequests             = "Too many requests. Please try again later."
)

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{Kind: KindValidation, Message: message}
}

// NewAlreadyExistsError は同一ロール内でメールアドレスが重複した場合のエラーを生成する。
func NewAlreadyExistsError(role Role) *APIError {
	if role == RolePractitioner {
		return &APIError{Kind: KindAlreadyExists, Message: MsgPractitionerAlreadyExists}
	}
	return &APIError{Kind: KindAlreadyExists, Message: MsgPatientAlreadyExists}
}

// NewLoginNotFoundError はログイン時にアカウントが存在しない場合のエラーを生成する。
func NewLoginNotFoundError(role Role) *APIError {
	if role == RolePractitioner {
		return &APIError{Kind: KindNotFound, Message: MsgPractitionerNotFound}
	}
	return &APIError{Kind: KindNotFound, Message: MsgPatientNotRegistered}
}

// NewUserNotFoundError はIDに対応するユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Message: MsgUserNotFound}
}

// NewInvalidCredentialError はパスワード不一致エラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{Kind: KindInvalidCredential, Message: MsgInvalidPassword}
}

// NewUnauthorizedError はセッショントークンが無い・無効・期限切れの場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{Kind: KindUnauthorized, Message: MsgNotAuthorized}
}

// NewUnsupportedRoleError はレコードモデルが未定義のロールでログインしようとした場合のエラーを生成する。
func NewUnsupportedRoleError(role Role) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s login is not available yet", role),
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{Kind: KindInternal, Message: MsgInternal}
}
