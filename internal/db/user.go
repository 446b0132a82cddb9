package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 定义了用户模型
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"size:255;uniqueIndex;not null" json:"email,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Nickname  string         `gorm:"size:80" json:"nickname"`
	AvatarURL string         `gorm:"size:512" json:"avatarUrl"`
	Role      string         `gorm:"size:20;not null;default:user;index" json:"role"`
	IsBanned  bool           `gorm:"default:false" json:"isBanned"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin 判断用户是否具备管理员角色。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// EnsureAdmin 存在性检查：若提供的邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
// 已存在的账号会被提升为管理员，密码保持不变。
func EnsureAdmin(gdb *gorm.DB, email, password string) (bool, error) {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return false, nil
	}

	if gdb == nil {
		return false, errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return false, err
		}

		admin := User{Email: trimmedEmail, Password: string(hashed), Nickname: "admin", Role: RoleAdmin}
		if err := gdb.Create(&admin).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	if existing.Role != RoleAdmin {
		return false, gdb.Model(&existing).Update("role", RoleAdmin).Error
	}
	return false, nil
}
