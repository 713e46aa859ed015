package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const avatarCacheControl = "3600"

var ErrUnsupportedAvatarType = errors.New("unsupported avatar content type")

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarService uploads profile pictures. The profile row only changes after the upload
// has succeeded, so a storage failure leaves the previous avatar in place.
type AvatarService struct {
	repo   Repo
	store  storage.ObjectStore
	logger zerolog.Logger
}

func NewAvatarService(repo Repo, store storage.ObjectStore) (*AvatarService, error) {
	if repo == nil {
		return nil, errors.New("[NewAvatarService] profile repo is required")
	}
	if store == nil {
		return nil, errors.New("[NewAvatarService] object store is required")
	}
	return &AvatarService{
		repo:   repo,
		store:  store,
		logger: log.With().Str("component", "avatars").Logger(),
	}, nil
}

// Replace uploads a new avatar and returns its public URL.
func (as *AvatarService) Replace(ctx context.Context, profileID string, r io.Reader, contentType string) (string, error) {
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAvatarType, contentType)
	}

	profile, err := as.repo.Get(ctx, profileID)
	if err != nil {
		return "", dasherrors.Wrapf(err, "[AvatarService Replace] get profile %s", profileID)
	}

	objectPath := fmt.Sprintf("%s/%s%s", profileID, uuid.New().String(), ext)
	res, err := as.store.Upload(ctx, objectPath, r, storage.UploadOptions{
		ContentType:  contentType,
		CacheControl: avatarCacheControl,
	})
	if err != nil {
		as.logger.Err(err).Str("profile_id", profileID).Msg("avatar upload failed")
		return "", err
	}

	url := as.store.PublicURL(res.Path)
	if err := as.repo.SetAvatarURL(ctx, profileID, url); err != nil {
		if rmErr := as.store.Remove(ctx, res.Path); rmErr != nil {
			as.logger.Err(rmErr).Str("path", res.Path).Msg("failed to remove orphaned avatar")
		}
		return "", dasherrors.Wrapf(err, "[AvatarService Replace] set avatar url")
	}

	if old := as.objectPath(profile.AvatarURL); old != "" {
		if err := as.store.Remove(ctx, old); err != nil {
			as.logger.Err(err).Str("path", old).Msg("failed to remove previous avatar")
		}
	}
	return url, nil
}

// Remove deletes the current avatar object and clears the profile URL.
func (as *AvatarService) Remove(ctx context.Context, profileID string) error {
	profile, err := as.repo.Get(ctx, profileID)
	if err != nil {
		return dasherrors.Wrapf(err, "[AvatarService Remove] get profile %s", profileID)
	}
	old := as.objectPath(profile.AvatarURL)
	if old == "" {
		return nil
	}
	if err := as.store.Remove(ctx, old); err != nil {
		return err
	}
	return as.repo.SetAvatarURL(ctx, profileID, "")
}

// objectPath maps a public URL issued by the store back to its object path.
func (as *AvatarService) objectPath(url string) string {
	if url == "" {
		return ""
	}
	prefix := as.store.PublicURL("")
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
