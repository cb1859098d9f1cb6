package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/panchsetu/internal/model"
	"github.com/lib/pq"
)

// PostgreSQLのエラーコード
const (
	pqUniqueViolation  = "23505"
	pqStringTruncation = "22001"
)

const patientColumns = `id, name, email, password, phone, age, gender, street, city, state, pincode,
	blood_group, allergies, medical_history, current_medications, created_at, updated_at`

const practitionerColumns = `id, name, email, password, phone, specialization, bio, degrees,
	experience_years, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したアカウントリポジトリ。
// ロールごとにテーブル（patients, practitioners）が分かれている。
type PostgresUserRepo struct {
	db   *sql.DB
	role model.Role
}

// NewPostgresUserRepo はロールに対応するテーブルを使うPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB, role model.Role) (*PostgresUserRepo, error) {
	if _, err := CollectionName(role); err != nil {
		return nil, err
	}
	return &PostgresUserRepo{db: db, role: role}, nil
}

// Role はこのリポジトリが扱うロールを返す。
func (r *PostgresUserRepo) Role() model.Role {
	return r.role
}

// EnsureIndexes は何もしない。UNIQUE(email)はマイグレーションで作成される。
func (r *PostgresUserRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Create はアカウントを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	user.Role = r.role

	var err error
	if r.role == model.RolePatient {
		p := user.Patient
		if p == nil {
			p = &model.PatientProfile{}
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO patients (`+patientColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			user.ID, user.Name, user.Email, user.PasswordHash, user.Phone,
			p.Age, p.Gender, p.Address.Street, p.Address.City, p.Address.State, p.Address.Pincode,
			p.BloodGroup, pq.Array(p.Allergies), pq.Array(p.MedicalHistory), pq.Array(p.CurrentMedications),
			user.CreatedAt, user.UpdatedAt,
		)
	} else {
		p := user.Practitioner
		if p == nil {
			p = &model.PractitionerProfile{}
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO practitioners (`+practitionerColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			user.ID, user.Name, user.Email, user.PasswordHash, user.Phone,
			p.Specialization, p.Bio, pq.Array(p.Degrees), p.ExperienceYears,
			user.CreatedAt, user.UpdatedAt,
		)
	}

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return fmt.Errorf("failed to insert %s: %w", r.role, model.ErrDuplicateEmail)
			case pqStringTruncation:
				return fmt.Errorf("failed to insert %s: %w", r.role, model.ErrValueTooLong)
			}
		}
		return fmt.Errorf("failed to insert %s: %w", r.role, err)
	}
	return nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id", id)
}

// findOne はcolumnで1件検索する。columnは内部で固定値のみを渡す。
func (r *PostgresUserRepo) findOne(ctx context.Context, column, value string) (*model.User, error) {
	user := &model.User{Role: r.role}

	var err error
	if r.role == model.RolePatient {
		p := &model.PatientProfile{}
		err = r.db.QueryRowContext(ctx,
			`SELECT `+patientColumns+` FROM patients WHERE `+column+` = $1`,
			value,
		).Scan(
			&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Phone,
			&p.Age, &p.Gender, &p.Address.Street, &p.Address.City, &p.Address.State, &p.Address.Pincode,
			&p.BloodGroup, pq.Array(&p.Allergies), pq.Array(&p.MedicalHistory), pq.Array(&p.CurrentMedications),
			&user.CreatedAt, &user.UpdatedAt,
		)
		user.Patient = p
	} else {
		p := &model.PractitionerProfile{}
		err = r.db.QueryRowContext(ctx,
			`SELECT `+practitionerColumns+` FROM practitioners WHERE `+column+` = $1`,
			value,
		).Scan(
			&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Phone,
			&p.Specialization, &p.Bio, pq.Array(&p.Degrees), &p.ExperienceYears,
			&user.CreatedAt, &user.UpdatedAt,
		)
		user.Practitioner = p
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by %s: %w", r.role, column, err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
