package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/panchsetu/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// コレクション名
const (
	patientsCollection      = "patients"
	practitionersCollection = "practitioners"
)

// CollectionName はロールに対応するコレクション（テーブル）名を返す。
func CollectionName(role model.Role) (string, error) {
	switch role {
	case model.RolePatient:
		return patientsCollection, nil
	case model.RolePractitioner:
		return practitionersCollection, nil
	default:
		return "", fmt.Errorf("no store for role %q", role)
	}
}

// MongoUserRepo はMongoDBを使用したアカウントリポジトリ。
type MongoUserRepo struct {
	role model.Role
	coll *mongo.Collection
}

// NewMongoUserRepo はロールに対応するコレクションを使うMongoUserRepoを生成する。
func NewMongoUserRepo(db *mongo.Database, role model.Role) (*MongoUserRepo, error) {
	name, err := CollectionName(role)
	if err != nil {
		return nil, err
	}
	return &MongoUserRepo{role: role, coll: db.Collection(name)}, nil
}

// Role はこのリポジトリが扱うロールを返す。
func (r *MongoUserRepo) Role() model.Role {
	return r.role
}

// EnsureIndexes はemailのユニークインデックスを作成する。既に存在する場合は何もしない。
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index on %s: %w", r.coll.Name(), err)
	}
	return nil
}

// Create はアカウントを作成する。
func (r *MongoUserRepo) Create(ctx context.Context, user *model.User) error {
	user.Role = r.role
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to insert %s: %w", r.role, model.ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to insert %s: %w", r.role, err)
	}
	return nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *MongoUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", r.role, err)
	}
	// 旧データにroleが保存されていない場合もストアから決まる
	user.Role = r.role
	return &user, nil
}

// compile-time interface check
var _ UserRepository = (*MongoUserRepo)(nil)
