package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/db"
	"github.com/Tafsirchy/thikana/internal/models"
)

// IUserService defines the interface for user-related operations.
// It also resolves owner contacts for alert dispatch.
type IUserService interface {
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateNotificationPreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error
	AddPushToken(ctx context.Context, userID primitive.ObjectID, token string) error
	RemovePushToken(ctx context.Context, userID primitive.ObjectID, token string) error
	ForgetPushToken(ctx context.Context, token string) error
	SetSuspended(ctx context.Context, userID primitive.ObjectID, suspended bool) error
	GetContact(ctx context.Context, ownerID string) (*alerts.ContactInfo, error)
}

// userService implements IUserService.
type userService struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database, logger *zap.Logger) IUserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{db: database, logger: logger.With(zap.String("component", "services.user"))}
}

// CreateUser inserts a user with default notification preferences.
func (s *userService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidInput, email)
	}

	now := time.Now().UTC()
	prefs := models.DefaultNotificationPreferences()
	user := &models.User{
		Base:                    models.NewBase(),
		Name:                    strings.TrimSpace(name),
		Email:                   email,
		NotificationPreferences: &prefs,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	err := db.Try(ctx, func() error {
		_, insertErr := s.db.Collection(db.CollUsers).InsertOne(ctx, user)
		return insertErr
	})
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}
	return user, nil
}

// FindByID finds a non-deleted user.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": userID, "deleted": false}, userID.Hex())
}

// FindByEmail finds a non-deleted user by their email address.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.findOne(ctx, bson.M{"email": email, "deleted": false}, email)
}

func (s *userService) findOne(ctx context.Context, filter bson.M, label string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.CollUsers).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", label, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding user %s: %w", label, err)
	}
	return &user, nil
}

func (s *userService) updateUser(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	result, err := s.db.Collection(db.CollUsers).UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID.Hex(), ErrNotFound)
	}
	return nil
}

// UpdateNotificationPreferences replaces the user's alert channel preferences.
func (s *userService) UpdateNotificationPreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{
		"notification_preferences": prefs,
		"updated_at":               time.Now().UTC(),
	}})
}

// AddPushToken registers a device token. Adding a known token is a no-op.
func (s *userService) AddPushToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty push token", ErrInvalidInput)
	}
	return s.updateUser(ctx, userID, bson.M{
		"$addToSet": bson.M{"push_tokens": token},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
}

// RemovePushToken unregisters a device token from the user.
func (s *userService) RemovePushToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	return s.updateUser(ctx, userID, bson.M{
		"$pull": bson.M{"push_tokens": token},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// ForgetPushToken removes a token from every user, used when the push
// provider reports it as unregistered.
func (s *userService) ForgetPushToken(ctx context.Context, token string) error {
	_, err := s.db.Collection(db.CollUsers).UpdateMany(ctx,
		bson.M{"push_tokens": token},
		bson.M{"$pull": bson.M{"push_tokens": token}},
	)
	if err != nil {
		return fmt.Errorf("failed to forget push token: %w", err)
	}
	return nil
}

// SetSuspended suspends or reinstates a user. Suspended users receive no alerts.
func (s *userService) SetSuspended(ctx context.Context, userID primitive.ObjectID, suspended bool) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{
		"suspended":  suspended,
		"updated_at": time.Now().UTC(),
	}})
}

// GetContact resolves how an owner can be reached. Unknown, deleted and
// suspended users are reported as ErrNotFound.
func (s *userService) GetContact(ctx context.Context, ownerID string) (*alerts.ContactInfo, error) {
	oid, err := ParseID(ownerID)
	if err != nil {
		return nil, err
	}
	user, err := s.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if user.Suspended {
		return nil, fmt.Errorf("user %s is suspended: %w", ownerID, ErrNotFound)
	}

	prefs := user.Preferences()
	return &alerts.ContactInfo{
		OwnerID:      ownerID,
		Name:         user.Name,
		Email:        user.Email,
		PushTokens:   append([]string(nil), user.PushTokens...),
		EmailEnabled: prefs.EmailAlerts && user.Email != "",
		PushEnabled:  prefs.PushAlerts && len(user.PushTokens) > 0,
	}, nil
}
