// Package auth はメールアドレスとパスワードによる認証とセッション管理を提供する。
// 認証状態の変化はidentity.Broadcasterへ配信する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/uniswipe/internal/identity"
	"github.com/hitoshi/uniswipe/internal/model"
	"github.com/hitoshi/uniswipe/internal/repository"
	"github.com/hitoshi/uniswipe/internal/validation"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はDefaultBcryptCost
}

// SignUpInput は新規登録の入力。
type SignUpInput struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SignInInput はログインの入力。
type SignInInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	broadcaster *identity.Broadcaster
	machine     *identity.Machine
	validator   *validation.Validator
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	broadcaster *identity.Broadcaster,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		broadcaster: broadcaster,
		machine:     identity.NewMachine(time.Duration(config.SessionMaxAge) * time.Second),
		validator:   validation.New(),
		config:      config,
	}
}

// SignUp はユーザーを新規登録し、セッションを発行する。
// お気に入り・評価・メモは空の状態で作成される。
// 登録済みのメールアドレスの場合はEMAIL_ALREADY_REGISTERED、入力不正の場合はINVALID_REQUESTを返す。
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.Session, *model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return nil, nil, err
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	s.publish(sessionID, identity.Authenticating, nil)

	user, err := s.createUser(ctx, in)
	if err != nil {
		s.publish(sessionID, identity.Unauthenticated, nil)
		return nil, nil, err
	}

	session, err := s.createSession(ctx, sessionID, user.ID)
	if err != nil {
		s.publish(sessionID, identity.Unauthenticated, nil)
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new user registered", slog.String("user_id", user.ID))
	s.publish(sessionID, identity.Authenticated, user)
	return session, user, nil
}

func (s *Service) createUser(ctx context.Context, in SignUpInput) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailRegisteredError()
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailRegisteredError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// メールアドレスの不在とパスワード不一致はどちらもAUTH_FAILEDを返す。
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*model.Session, *model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, nil, err
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	s.publish(sessionID, identity.Authenticating, nil)

	user, err := s.authenticate(ctx, in)
	if err != nil {
		s.publish(sessionID, identity.Unauthenticated, nil)
		return nil, nil, err
	}

	session, err := s.createSession(ctx, sessionID, user.ID)
	if err != nil {
		s.publish(sessionID, identity.Unauthenticated, nil)
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	s.publish(sessionID, identity.Authenticated, user)
	return session, user, nil
}

func (s *Service) authenticate(ctx context.Context, in SignInInput) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewAuthFailedError()
	}

	if err := VerifyPassword(user.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			slog.Warn("password verification failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, model.NewAuthFailedError()
	}
	return user, nil
}

// SignOut はセッションを破棄し、未認証状態を配信する。
// 購読側はこの通知でセッションに紐づくメモリ上の状態を破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	err := s.sessionRepo.DeleteByID(ctx, sessionID)
	// 削除に失敗してもメモリ上の状態は必ず破棄する
	s.publish(sessionID, identity.Unauthenticated, nil)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
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
	s.machine.Restore(session.ID, session.ExpiresAt)

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// State はセッションの現在の認証状態を返す。
func (s *Service) State(sessionID string) identity.State {
	return s.machine.Current(sessionID)
}

// PruneExpired は期限切れセッションの認証状態の記録を削除する。
// サインアウトせずに期限切れになったセッションの記録はここで消える。
func (s *Service) PruneExpired(now time.Time) int {
	return s.machine.PruneExpired(now)
}

// publish は状態遷移を記録してから購読者へ配信する。
// 再起動後のサインアウトのように遷移記録のないセッションでも配信は行う。
func (s *Service) publish(sessionID string, state identity.State, user *model.User) {
	if err := s.machine.Transition(sessionID, state); err != nil {
		slog.Debug("identity transition not recorded",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(identity.Change{
		SessionID: sessionID,
		State:     state,
		User:      user,
	})
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
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
		return "", err
	}
	return hex.EncodeToString(b), nil
}
