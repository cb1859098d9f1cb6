// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"time"
)

// Role はアカウントの種別を表す。作成時に決まり、以後変更されない。
type Role string

const (
	// RolePatient は患者アカウントを示す。
	RolePatient Role = "patient"
	// RolePractitioner は施術者アカウントを示す。
	RolePractitioner Role = "practitioner"
	// RoleHospital は病院アカウントを示す。サーバー側のレコードモデルは未定義。
	RoleHospital Role = "hospital"
	// RoleAdmin は管理者アカウントを示す。サーバー側のレコードモデルは未定義。
	RoleAdmin Role = "admin"
)

// IsValid はロールが既知の値かどうかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RolePractitioner, RoleHospital, RoleAdmin:
		return true
	default:
		return false
	}
}

// ErrDuplicateEmail はストレージ層の一意制約によりメールアドレスの重複が検出されたことを示す。
var ErrDuplicateEmail = errors.New("email already exists")

// ErrValueTooLong はストレージ層の列幅を超える値が渡されたことを示す。
var ErrValueTooLong = errors.New("value too long for column")

// Address は患者の住所を表す。
type Address struct {
	Street  string `bson:"street,omitempty" json:"street,omitempty"`
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	State   string `bson:"state,omitempty" json:"state,omitempty"`
	Pincode string `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

// IsZero は住所が未入力かどうかを返す。
func (a Address) IsZero() bool {
	return a == Address{}
}

// PatientProfile は患者固有のプロフィール情報。
type PatientProfile struct {
	Age                int      `bson:"age,omitempty"`
	Gender             string   `bson:"gender,omitempty"` // Male, Female, Other
	Address            Address  `bson:"address,omitempty"`
	BloodGroup         string   `bson:"blood_group,omitempty"`
	Allergies          []string `bson:"allergies,omitempty"`
	MedicalHistory     []string `bson:"medical_history,omitempty"`
	CurrentMedications []string `bson:"current_medications,omitempty"`
}

// PractitionerProfile は施術者固有のプロフィール情報。
type PractitionerProfile struct {
	Specialization  string   `bson:"specialization,omitempty"` // Panchakarma, Ayurveda 等
	Bio             string   `bson:"bio,omitempty"`
	Degrees         []string `bson:"degrees,omitempty"`
	ExperienceYears int      `bson:"experience_years"`
}

// User は認証対象のアカウント（患者または施術者）を表す。
// PasswordHashは平文パスワードではなくハッシュ値のみを保持する。
type User struct {
	ID           string    `bson:"_id"`
	Role         Role      `bson:"role"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	Phone        string    `bson:"phone,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`

	Patient      *PatientProfile      `bson:"patient,omitempty"`
	Practitioner *PractitionerProfile `bson:"practitioner,omitempty"`
}

// SafeProfile はクライアントへ返却してよいユーザー情報のみを持つ。
// パスワードハッシュは含めない。
type SafeProfile struct {
	ID        string     `json:"_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Role      Role       `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// ToSafeProfile はUserからSafeProfileを生成する。
// 名前が空の場合は "User" を用いる。
func (u *User) ToSafeProfile() SafeProfile {
	name := u.Name
	if name == "" {
		name = "User"
	}
	p := SafeProfile{
		ID:    u.ID,
		Name:  name,
		Email: u.Email,
		Phone: u.Phone,
		Role:  u.Role,
	}
	if !u.CreatedAt.IsZero() {
		createdAt := u.CreatedAt
		p.CreatedAt = &createdAt
	}
	return p
}

// Session はログインまたは登録の成功によって発行されたセッショントークンを表す。
// サーバー側には保存されない。
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      SafeProfile
}
