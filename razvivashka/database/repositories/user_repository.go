package repositories

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	// Ensure registers the user on first contact and refreshes the display
	// name on subsequent ones. Safe under concurrent calls for the same user.
	Ensure(ctx context.Context, chatID snowflake.ID, username, fullName string) (*models.User, error)
	GetByChatID(ctx context.Context, chatID snowflake.ID) (*models.User, error)
}

type userRepository struct {
	*BaseRepository
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *userRepository) Ensure(ctx context.Context, chatID snowflake.ID, username, fullName string) (*models.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	user := &models.User{
		ChatID:    chatID,
		Username:  username,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (chat_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("full_name = EXCLUDED.full_name").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, r.HandleError("ensure", "user", chatID, err)
	}
	return user, nil
}

func (r *userRepository) GetByChatID(ctx context.Context, chatID snowflake.ID) (*models.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("chat_id = ?", chatID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("get", "user", chatID, err)
	}
	return user, nil
}
