package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/munichweekly/internal/auth"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailInvalid       = errors.New("email is invalid")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserBanned         = errors.New("user is banned")
	ErrCannotBanAdmin     = errors.New("admins cannot be banned")
)

// UserService 负责注册、登录与管理员的用户管理。
type UserService struct {
	db   *gorm.DB
	auth config.AuthSettings
}

// RegisterInput holds the fields accepted on sign up.
type RegisterInput struct {
	Email    string
	Password string
	Nickname string
}

// LoginResult carries the user and a freshly issued token.
type LoginResult struct {
	User  *db.User
	Token string
}

// UserFilter describes the admin user listing.
type UserFilter struct {
	Search  string
	Banned  *bool
	Page    int
	PerPage int
}

// UserListResult aggregates paginated users.
type UserListResult struct {
	Items      []db.User
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewUserService creates a UserService instance.
func NewUserService(gdb *gorm.DB, authSettings config.AuthSettings) *UserService {
	return &UserService{db: gdb, auth: authSettings}
}

// Register 创建普通用户，邮箱统一转为小写并保证唯一。
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	var count int64
	if err := s.db.Unscoped().Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		nickname = strings.SplitN(email, "@", 2)[0]
	}

	user := db.User{
		Email:    email,
		Password: string(hashed),
		Nickname: nickname,
		Role:     db.RoleUser,
	}
	if err := s.db.Create(&user).Error; err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login 校验邮箱密码并签发令牌，被封禁的用户无法登录。
func (s *UserService) Login(email, password string, now time.Time) (*LoginResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}

	token, err := auth.GenerateToken(s.auth, &user, now)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{User: &user, Token: token}, nil
}

// Get fetches a user by id.
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// SetBanned toggles the ban flag of a non-admin user.
func (s *UserService) SetBanned(id uint, banned bool) (*db.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() && banned {
		return nil, ErrCannotBanAdmin
	}
	if err := s.db.Model(user).Update("is_banned", banned).Error; err != nil {
		return nil, fmt.Errorf("update ban flag: %w", err)
	}
	user.IsBanned = banned
	return user, nil
}

// List returns users matching the filter, newest first.
func (s *UserService) List(filter UserFilter) (UserListResult, error) {
	result := UserListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
	}

	query := s.db.Model(&db.User{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(nickname) LIKE ?", like, like)
	}
	if filter.Banned != nil {
		query = query.Where("is_banned = ?", *filter.Banned)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("created_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, err
	}
	return result, nil
}

// ensureActiveUser 确认用户存在且未被封禁。
func ensureActiveUser(tx *gorm.DB, userID uint) (*db.User, error) {
	var user db.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}
	return &user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return email, nil
}
