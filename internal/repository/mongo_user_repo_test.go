package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/panchsetu/internal/model"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupTestMongo はテスト用のMongoDBデータベースを準備する。
// TEST_MONGODB_URI が未設定、または接続できない場合はスキップする。
func setupTestMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI が未設定のためスキップ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("テスト用MongoDBに接続できません（スキップ）: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("テスト用MongoDBに接続できません（スキップ）: %v", err)
	}

	db := client.Database("panchsetu_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestMongoUserRepo_CreateAndFind(t *testing.T) {
	db := setupTestMongo(t)
	ctx := context.Background()

	repo, err := NewMongoUserRepo(db, model.RolePatient)
	if err != nil {
		t.Fatalf("NewMongoUserRepo() error = %v", err)
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         "Asha",
		Email:        "asha@example.com",
		PasswordHash: "hashed",
		CreatedAt:    now,
		UpdatedAt:    now,
		Patient:      &model.PatientProfile{Allergies: []string{"pollen"}},
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	byEmail, err := repo.FindByEmail(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Fatalf("FindByEmail() = %+v, want ID %q", byEmail, user.ID)
	}
	if byEmail.Patient == nil || len(byEmail.Patient.Allergies) != 1 {
		t.Errorf("patient profile not round-tripped: %+v", byEmail.Patient)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if byID == nil || byID.Email != user.Email {
		t.Fatalf("FindByID() = %+v", byID)
	}

	missing, err := repo.FindByID(ctx, "missing")
	if err != nil {
		t.Fatalf("FindByID(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}
}

func TestMongoUserRepo_DuplicateEmail_ReturnsErrDuplicateEmail(t *testing.T) {
	db := setupTestMongo(t)
	ctx := context.Background()

	repo, err := NewMongoUserRepo(db, model.RolePractitioner)
	if err != nil {
		t.Fatalf("NewMongoUserRepo() error = %v", err)
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	first := &model.User{ID: uuid.NewString(), Name: "Dr. Rao", Email: "rao@example.com", PasswordHash: "h"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second := &model.User{ID: uuid.NewString(), Name: "Other", Email: "rao@example.com", PasswordHash: "h"}
	err = repo.Create(ctx, second)
	if !errors.Is(err, model.ErrDuplicateEmail) {
		t.Fatalf("Create() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestMongoUserRepo_SameEmailDifferentRoles_Allowed(t *testing.T) {
	db := setupTestMongo(t)
	ctx := context.Background()

	patients, _ := NewMongoUserRepo(db, model.RolePatient)
	practitioners, _ := NewMongoUserRepo(db, model.RolePractitioner)
	stores := NewStores(patients, practitioners)
	if err := stores.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	email := "shared@example.com"
	if err := patients.Create(ctx, &model.User{ID: uuid.NewString(), Email: email, PasswordHash: "h"}); err != nil {
		t.Fatalf("patient Create() error = %v", err)
	}
	if err := practitioners.Create(ctx, &model.User{ID: uuid.NewString(), Email: email, PasswordHash: "h"}); err != nil {
		t.Fatalf("practitioner Create() error = %v", err)
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		role    model.Role
		want    string
		wantErr bool
	}{
		{model.RolePatient, "patients", false},
		{model.RolePractitioner, "practitioners", false},
		{model.RoleHospital, "", true},
		{model.RoleAdmin, "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := CollectionName(tt.role)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CollectionName(%q) error = %v, wantErr %v", tt.role, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CollectionName(%q) = %q, want %q", tt.role, got, tt.want)
			}
		})
	}
}
