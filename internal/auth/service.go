// Package auth はパスワード認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/medreminder/internal/model"
	"github.com/hitoshi/medreminder/internal/repository"
)

// DoseGenerator は当日分の服薬記録を生成するインターフェース。
// ログイン時に呼び出され、当日のスケジュールを揃える。
type DoseGenerator interface {
	EnsureToday(ctx context.Context, userID string, now time.Time) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RegisterInput はユーザー登録の入力。
// CloseContactName/CloseContactPhoneは任意（両方揃った場合のみ登録される）。
type RegisterInput struct {
	Name              string
	Email             string
	Password          string
	Age               int
	Contact           string
	CloseContactName  string
	CloseContactPhone string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	doseGen     DoseGenerator
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	doseGen DoseGenerator,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		doseGen:     doseGen,
		config:      config,
	}
}

// Register は新規ユーザーを登録する。
// パスワードはbcryptでハッシュ化して保存する。
// 二次連絡先は名前と電話番号の両方が指定された場合のみ同時に登録される。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, model.NewValidationFailedError("名前・メールアドレス・パスワードは必須です")
	}

	exists, err := s.userRepo.ExistsByNameOrEmail(ctx, input.Name, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateUserError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        input.Email,
		Age:          input.Age,
		Contact:      input.Contact,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	var contact *model.CloseContact
	if input.CloseContactName != "" && input.CloseContactPhone != "" {
		contact = &model.CloseContact{
			ID:      uuid.New().String(),
			UserID:  user.ID,
			Name:    input.CloseContactName,
			Contact: input.CloseContactPhone,
		}
	}

	if err := s.userRepo.CreateWithCloseContact(ctx, user, contact); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// 認証成功後に当日分の服薬記録を生成する（失敗してもログインは成功する）。
// ユーザー不在とパスワード不一致は同じエラーを返し、ユーザー名の存在を
// 外部から推測できないようにする。
func (s *Service) Login(ctx context.Context, name, password string) (*model.Session, *model.User, error) {
	user, err := s.userRepo.FindByName(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	// ログイン時に当日分のスケジュールを揃える
	if err := s.doseGen.EnsureToday(ctx, user.ID, time.Now()); err != nil {
		slog.Warn("当日分の服薬記録生成に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
