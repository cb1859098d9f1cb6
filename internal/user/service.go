// Package user はトークンで識別されたユーザーの情報取得を提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/panchsetu/internal/model"
	"github.com/hitoshi/panchsetu/internal/repository"
)

// 未入力項目の表示文言。既存のダッシュボードがそのまま表示する。
const (
	notSet             = "Not Set"
	noMedicalHistory   = "no history found"
	noMedicationsFound = "No medications found"
)

// PatientData は患者ダッシュボードに返す情報。
// 未入力の項目は文字列の既定文言になるため、値の型は項目ごとに異なる。
type PatientData struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Age                any    `json:"age"`
	Gender             any    `json:"gender"`
	Address            any    `json:"address"`
	BloodGroup         any    `json:"bloodGroup"`
	Allergies          any    `json:"allergies"`
	MedicalHistory     any    `json:"medicalHistory"`
	CurrentMedications any    `json:"currentMedications"`
}

// Service はユーザー情報取得のサービス層。
type Service struct {
	stores repository.Stores
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(stores repository.Stores) *Service {
	return &Service{stores: stores}
}

// GetProfile はトークンのロールに対応するストアからユーザーを取得し、公開可能な情報を返す。
// ロールごとにストアが決まるため、複数ストアを探索しない。
func (s *Service) GetProfile(ctx context.Context, id string, role model.Role) (model.SafeProfile, error) {
	user, err := s.find(ctx, id, role)
	if err != nil {
		return model.SafeProfile{}, err
	}
	return user.ToSafeProfile(), nil
}

// GetPatientData は患者ダッシュボード用の情報を返す。患者以外はNotFoundとなる。
func (s *Service) GetPatientData(ctx context.Context, id string, role model.Role) (*PatientData, error) {
	if role != model.RolePatient {
		return nil, model.NewUserNotFoundError()
	}
	user, err := s.find(ctx, id, role)
	if err != nil {
		return nil, err
	}

	p := user.Patient
	if p == nil {
		p = &model.PatientProfile{}
	}

	data := &PatientData{
		Name:               user.Name,
		Email:              user.Email,
		Phone:              user.Phone,
		Age:                notSet,
		Gender:             notSet,
		Address:            notSet,
		BloodGroup:         notSet,
		Allergies:          notSet,
		MedicalHistory:     noMedicalHistory,
		CurrentMedications: noMedicationsFound,
	}
	if p.Age > 0 {
		data.Age = p.Age
	}
	if p.Gender != "" {
		data.Gender = p.Gender
	}
	if !p.Address.IsZero() {
		data.Address = p.Address
	}
	if p.BloodGroup != "" {
		data.BloodGroup = p.BloodGroup
	}
	if len(p.Allergies) > 0 {
		data.Allergies = p.Allergies
	}
	if len(p.MedicalHistory) > 0 {
		data.MedicalHistory = p.MedicalHistory
	}
	if len(p.CurrentMedications) > 0 {
		data.CurrentMedications = p.CurrentMedications
	}
	return data, nil
}

func (s *Service) find(ctx context.Context, id string, role model.Role) (*model.User, error) {
	store, ok := s.stores.For(role)
	if !ok {
		return nil, model.NewUserNotFoundError()
	}
	user, err := store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
