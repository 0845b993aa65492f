package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/medreminder/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var age sql.NullInt64
	var contact sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, age, contact, password_hash, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &age, &contact, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.Age = int(age.Int64)
	user.Contact = nullStringValue(contact)

	return user, nil
}

// FindByName はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByName(ctx context.Context, name string) (*model.User, error) {
	user := &model.User{}
	var age sql.NullInt64
	var contact sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, age, contact, password_hash, created_at
		 FROM users WHERE name = $1`,
		name,
	).Scan(&user.ID, &user.Name, &user.Email, &age, &contact, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by name: %w", err)
	}

	user.Age = int(age.Int64)
	user.Contact = nullStringValue(contact)

	return user, nil
}

// ExistsByNameOrEmail はユーザー名またはメールアドレスが登録済みかを返す。
func (r *PostgresUserRepo) ExistsByNameOrEmail(ctx context.Context, name, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE name = $1 OR email = $2)`,
		name, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// CreateWithCloseContact はユーザーと二次連絡先を同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithCloseContact(ctx context.Context, user *model.User, contact *model.CloseContact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, age, contact, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Name, user.Email, user.Age, user.Contact, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if contact != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO close_contacts (id, user_id, name, contact)
			 VALUES ($1, $2, $3, $4)`,
			contact.ID, contact.UserID, contact.Name, contact.Contact,
		)
		if err != nil {
			return fmt.Errorf("failed to insert close contact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindCloseContactByUserID はユーザーの二次連絡先を取得する。
// 複数行存在する場合も最初の1件のみ返す。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindCloseContactByUserID(ctx context.Context, userID string) (*model.CloseContact, error) {
	contact := &model.CloseContact{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, contact
		 FROM close_contacts WHERE user_id = $1
		 ORDER BY id LIMIT 1`,
		userID,
	).Scan(&contact.ID, &contact.UserID, &contact.Name, &contact.Contact)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("二次連絡先の取得に失敗しました: %w", err)
	}

	return contact, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
