// Package auth はパスワード認証、セッショントークンの発行・検証、ログアウトを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hitoshi/panchsetu/internal/mailer"
	"github.com/hitoshi/panchsetu/internal/metrics"
	"github.com/hitoshi/panchsetu/internal/model"
	"github.com/hitoshi/panchsetu/internal/repository"
	"github.com/hitoshi/panchsetu/internal/security"
)

// ErrTokenRevoked はログアウト済みのトークンが提示されたことを示す。
var ErrTokenRevoked = errors.New("session token has been revoked")

// PatientRegistration は患者の登録入力。
type PatientRegistration struct {
	Name               string        `json:"name" validate:"required"`
	Email              string        `json:"email" validate:"required"`
	Password           string        `json:"password" validate:"required"`
	Phone              string        `json:"phone"`
	Age                int           `json:"age" validate:"gte=0,lte=150"`
	Gender             string        `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Address            model.Address `json:"address"`
	BloodGroup         string        `json:"bloodGroup"`
	Allergies          []string      `json:"allergies"`
	MedicalHistory     []string      `json:"medicalHistory"`
	CurrentMedications []string      `json:"currentMedications"`
}

// PractitionerRegistration は施術者の登録入力。
type PractitionerRegistration struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required"`
	Password        string   `json:"password" validate:"required"`
	Phone           string   `json:"phone"`
	Specialization  string   `json:"specialization"`
	Bio             string   `json:"bio"`
	Degrees         []string `json:"degrees"`
	ExperienceYears int      `json:"experienceYears" validate:"gte=0,lte=100"`
}

type credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// ServiceConfig は認証サービスの任意の依存。nilの場合は無効化された実装を使う。
type ServiceConfig struct {
	Denylist  Denylist
	Mailer    mailer.Sender
	Sanitizer security.ProfileSanitizer
	Metrics   metrics.Recorder
}

// Service は登録・ログイン・ログアウトのビジネスロジックを提供する。
type Service struct {
	stores    repository.Stores
	hasher    PasswordHasher
	tokens    *TokenIssuer
	denylist  Denylist
	mailer    mailer.Sender
	sanitizer security.ProfileSanitizer
	metrics   metrics.Recorder
	validate  *validator.Validate
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	stores repository.Stores,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	config ServiceConfig,
) *Service {
	s := &Service{
		stores:    stores,
		hasher:    hasher,
		tokens:    tokens,
		denylist:  config.Denylist,
		mailer:    config.Mailer,
		sanitizer: config.Sanitizer,
		metrics:   config.Metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
	if s.denylist == nil {
		s.denylist = NopDenylist{}
	}
	if s.mailer == nil {
		s.mailer = mailer.NewLogSender(slog.Default())
	}
	if s.sanitizer == nil {
		s.sanitizer = security.NewProfileSanitizer()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	return s
}

// RegisterPatient は患者アカウントを作成し、セッションを発行する。
// 登録後にウェルカムメールを送信するが、送信失敗は登録結果に影響しない。
func (s *Service) RegisterPatient(ctx context.Context, in PatientRegistration) (*model.Session, error) {
	in.Name = s.sanitizer.Text(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = s.sanitizer.Text(in.Phone)

	if err := s.validate.Struct(in); err != nil {
		apiErr := validationError(err, model.MsgPatientDetailsRequired)
		s.metrics.RecordRegistration(string(model.RolePatient), resultLabel(apiErr))
		return nil, apiErr
	}

	user := &model.User{
		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
		Patient: &model.PatientProfile{
			Age:    in.Age,
			Gender: in.Gender,
			Address: model.Address{
				Street:  s.sanitizer.Text(in.Address.Street),
				City:    s.sanitizer.Text(in.Address.City),
				State:   s.sanitizer.Text(in.Address.State),
				Pincode: s.sanitizer.Text(in.Address.Pincode),
			},
			BloodGroup:         s.sanitizer.Text(in.BloodGroup),
			Allergies:          s.sanitizer.List(in.Allergies),
			MedicalHistory:     s.sanitizer.List(in.MedicalHistory),
			CurrentMedications: s.sanitizer.List(in.CurrentMedications),
		},
	}

	session, err := s.register(ctx, model.RolePatient, user, in.Password)
	s.metrics.RecordRegistration(string(model.RolePatient), resultLabel(err))
	if err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, user)
	return session, nil
}

// RegisterPractitioner は施術者アカウントを作成し、セッションを発行する。
func (s *Service) RegisterPractitioner(ctx context.Context, in PractitionerRegistration) (*model.Session, error) {
	in.Name = s.sanitizer.Text(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = s.sanitizer.Text(in.Phone)

	if err := s.validate.Struct(in); err != nil {
		apiErr := validationError(err, model.MsgPractitionerDetailsRequired)
		s.metrics.RecordRegistration(string(model.RolePractitioner), resultLabel(apiErr))
		return nil, apiErr
	}

	user := &model.User{
		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
		Practitioner: &model.PractitionerProfile{
			Specialization:  s.sanitizer.Text(in.Specialization),
			Bio:             s.sanitizer.Text(in.Bio),
			Degrees:         s.sanitizer.List(in.Degrees),
			ExperienceYears: in.ExperienceYears,
		},
	}

	session, err := s.register(ctx, model.RolePractitioner, user, in.Password)
	s.metrics.RecordRegistration(string(model.RolePractitioner), resultLabel(err))
	return session, err
}

// register はロール共通の登録処理。
// 事前の存在確認はメッセージを返すためのもので、一意性の保証はストア側の制約が担う。
func (s *Service) register(ctx context.Context, role model.Role, user *model.User, password string) (*model.Session, error) {
	store, ok := s.stores.For(role)
	if !ok {
		return nil, fmt.Errorf("no store configured for role %q", role)
	}

	existing, err := store.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing %s: %w", role, err)
	}
	if existing != nil {
		return nil, model.NewAlreadyExistsError(role)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user.ID = uuid.New().String()
	user.Role = role
	user.PasswordHash = hash
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := store.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) {
			// 存在確認と作成の間に同じメールアドレスで登録された
			return nil, model.NewAlreadyExistsError(role)
		}
		if errors.Is(err, model.ErrValueTooLong) {
			return nil, model.NewValidationError(model.MsgValueTooLong)
		}
		return nil, fmt.Errorf("failed to create %s: %w", role, err)
	}

	slog.InfoContext(ctx, "account registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)

	return s.issueSession(user)
}

// Login はメールアドレスとパスワードを照合し、セッションを発行する。
// hospital/admin はレコードモデルが未定義のため、未対応として扱う。
func (s *Service) Login(ctx context.Context, role model.Role, email, password string) (*model.Session, error) {
	session, err := s.login(ctx, role, email, password)
	s.metrics.RecordLogin(string(role), resultLabel(err))
	return session, err
}

func (s *Service) login(ctx context.Context, role model.Role, email, password string) (*model.Session, error) {
	store, ok := s.stores.For(role)
	if !ok {
		return nil, model.NewUnsupportedRoleError(role)
	}

	in := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(in); err != nil {
		return nil, model.NewValidationError(model.MsgCredentialsRequired)
	}

	user, err := store.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", role, err)
	}
	if user == nil {
		return nil, model.NewLoginNotFoundError(role)
	}

	start := time.Now()
	matched, err := s.hasher.Verify(in.Password, user.PasswordHash)
	s.metrics.ObservePasswordHash(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !matched {
		return nil, model.NewInvalidCredentialError()
	}

	slog.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)

	return s.issueSession(user)
}

// Authenticate はトークンを検証し、失効済みでないことを確認してクレームを返す。
// ストアには問い合わせない。
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout はトークンを失効リストに登録する。
// トークンが空・無効・期限切れの場合は何もしない（ログアウトは冪等）。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	slog.InfoContext(ctx, "user logged out",
		slog.String("user_id", claims.Subject),
		slog.String("role", string(claims.Role)),
	)
	return nil
}

// TokenTTL はセッショントークンの有効期間を返す。Cookieのmax-ageと一致させる。
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *Service) issueSession(user *model.User) (*model.Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &model.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToSafeProfile(),
	}, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.ObservePasswordHash(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// sendWelcome はウェルカムメールを送信する。失敗はログとメトリクスに記録するのみ。
// クライアントの切断で送信が中断されないよう、リクエストのキャンセルは引き継がない。
func (s *Service) sendWelcome(ctx context.Context, user *model.User) {
	msg, err := mailer.WelcomeMessage(user.Name, user.Email)
	if err == nil {
		err = s.mailer.Send(context.WithoutCancel(ctx), msg)
	}
	if err != nil {
		s.metrics.RecordMailFailure(s.mailer.Provider())
		slog.WarnContext(ctx, "failed to send welcome mail",
			slog.String("user_id", user.ID),
			slog.String("provider", s.mailer.Provider()),
			slog.String("error", err.Error()),
		)
	}
}

// validationError はバリデーション失敗をAPIErrorに変換する。
// 必須項目の欠落は既存クライアントが表示する文言を返す。
func validationError(err error, requiredMsg string) *model.APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError(requiredMsg)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return model.NewValidationError(requiredMsg)
		}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return model.NewValidationError(fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
	default:
		return model.NewValidationError(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// resultLabel はメトリクスのresultラベル値を返す。
func resultLabel(err error) string {
	if err == nil {
		return metrics.ResultSuccess
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(string(apiErr.Kind))
	}
	return strings.ToLower(string(model.KindInternal))
}
