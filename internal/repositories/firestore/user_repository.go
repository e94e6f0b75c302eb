package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/kalaghar/api/internal/domain"
	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

const usersCollection = "users"

// userDocument follows the shape the registration flow writes: location and avatar live
// under profile. Top-level location and profileImage are read for older documents.
type userDocument struct {
	Name         string                `firestore:"name"`
	Email        string                `firestore:"email"`
	Role         string                `firestore:"role"`
	Profile      *userProfileDocument  `firestore:"profile"`
	ProfileImage string                `firestore:"profileImage"`
	Location     *userLocationDocument `firestore:"location"`
}

type userProfileDocument struct {
	Location     *userLocationDocument `firestore:"location"`
	ProfileImage string                `firestore:"profileImage"`
	Avatar       string                `firestore:"avatar"`
}

type userLocationDocument struct {
	Latitude  *float64 `firestore:"latitude"`
	Longitude *float64 `firestore:"longitude"`
	City      string   `firestore:"city"`
	State     string   `firestore:"state"`
}

func (d userDocument) toDomain(id string) domain.UserProfile {
	profile := domain.UserProfile{
		ID:    id,
		Name:  strings.TrimSpace(d.Name),
		Email: strings.TrimSpace(d.Email),
		Role:  domain.UserRole(strings.ToLower(strings.TrimSpace(d.Role))),
	}
	location := d.Location
	image := d.ProfileImage
	if d.Profile != nil {
		if d.Profile.Location != nil {
			location = d.Profile.Location
		}
		image = firstNonBlank(d.Profile.ProfileImage, d.Profile.Avatar, image)
	}
	profile.ProfileImage = strings.TrimSpace(image)
	if location != nil {
		profile.Location = &domain.GeoLocation{
			Latitude:  location.Latitude,
			Longitude: location.Longitude,
			City:      strings.TrimSpace(location.City),
			State:     strings.TrimSpace(location.State),
		}
	}
	return profile
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// UserRepository reads the shared user directory. Profiles are owned elsewhere.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user reader.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{base: pfirestore.NewBaseRepository[userDocument](provider, usersCollection)}, nil
}

// FindByID loads the profile by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByIDs loads several profiles; missing users are omitted.
func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}
	docs, err := r.base.GetAll(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}
	users := make(map[string]domain.UserProfile, len(docs))
	for _, doc := range docs {
		users[doc.ID] = doc.Data.toDomain(doc.ID)
	}
	return users, nil
}
