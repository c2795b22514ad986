// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"

	"camaral-smart-go/internal/model"

	"gorm.io/gorm"
)

// UserRepository 接口定义了用户画像数据的持久化操作。
type UserRepository interface {
	// GetOrCreate 按 (userID, channelID) 查找用户，不存在则惰性创建一条空画像记录。
	GetOrCreate(userID, channelID string) (*model.User, error)
	Find(userID, channelID string) (*model.User, error)
	Update(user *model.User) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetOrCreate 按 (userID, channelID) 获取用户，首次联系时创建。
func (r *userRepository) GetOrCreate(userID, channelID string) (*model.User, error) {
	user, err := r.Find(userID, channelID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &model.User{UserID: userID, ChannelID: channelID, ProfileSummary: ""}
	if err := r.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Find 根据 (userID, channelID) 从数据库中查找一个用户。
func (r *userRepository) Find(userID, channelID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("user_id = ? AND channel_id = ?", userID, channelID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update 更新数据库中一个已存在的用户记录。
func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}
