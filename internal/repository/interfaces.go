// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/panchsetu/internal/model"
)

// UserRepository はロール単位のアカウント永続化インターフェース。
// 患者と施術者は別々のストアに保存され、メールアドレスは各ストア内で一意となる。
type UserRepository interface {
	// Role はこのリポジトリが扱うロールを返す。
	Role() model.Role

	// Create はアカウントを作成する。
	// メールアドレスが既に存在する場合はmodel.ErrDuplicateEmailをラップして返す。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// EnsureIndexes はメールアドレスの一意制約をストア側に用意する。
	EnsureIndexes(ctx context.Context) error
}

// Stores はロールごとのUserRepositoryの集合。
// レコードモデルが未定義のロール（hospital, admin）は含まれない。
type Stores map[model.Role]UserRepository

// NewStores はリポジトリをロールで索引付けしたStoresを生成する。
func NewStores(repos ...UserRepository) Stores {
	s := make(Stores, len(repos))
	for _, r := range repos {
		s[r.Role()] = r
	}
	return s
}

// For は指定ロールのリポジトリを返す。未対応のロールの場合はfalseを返す。
func (s Stores) For(role model.Role) (UserRepository, bool) {
	r, ok := s[role]
	return r, ok
}

// EnsureIndexes は全ストアの一意制約を用意する。
func (s Stores) EnsureIndexes(ctx context.Context) error {
	for _, r := range s {
		if err := r.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
