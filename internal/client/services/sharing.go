package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/dmitrijs2005/gophdrive/internal/client/sharing"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// userSearchTTL bounds how long a user search answer is reused.
const userSearchTTL = 30 * time.Second

// SharingService grants and revokes access to objects of the current user.
type SharingService interface {
	// Share grants key to every recipient. Recipients are processed
	// independently; the returned error joins the failures.
	Share(ctx context.Context, key string, recipient models.RecipientType, ids []int64) error

	// Unshare revokes shareID from target. When the same grant is visible
	// under other objects, confirm must agree before anything is revoked.
	Unshare(ctx context.Context, target models.FileObject, shareID int64, confirm Confirmer) error

	SearchUsers(ctx context.Context, prefix string) ([]models.User, error)
}

type sharingService struct {
	api   client.Sharing
	log   logging.Logger
	users *ttlcache.Cache[string, []models.User]
}

func NewSharingService(api client.Sharing, log logging.Logger) SharingService {
	return &sharingService{
		api: api,
		log: log,
		users: ttlcache.New[string, []models.User](
			ttlcache.WithTTL[string, []models.User](userSearchTTL),
			ttlcache.WithDisableTouchOnHit[string, []models.User](),
		),
	}
}

func (s *sharingService) Share(ctx context.Context, key string, recipient models.RecipientType, ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no recipients", common.ErrInvalidName)
	}

	var errs []error
	for _, id := range lo.Uniq(ids) {
		if err := s.api.Share(ctx, recipient, id, key); err != nil {
			s.log.Error(ctx, "share failed", "key", key, "recipient_type", recipient, "recipient", id, "error", err)
			errs = append(errs, fmt.Errorf("share %s with %s %d: %w", objkey.DisplayName(key), strings.ToLower(string(recipient)), id, err))
			continue
		}
		s.log.Info(ctx, "object shared", "key", key, "recipient_type", recipient, "recipient", id)
	}
	return errors.Join(errs...)
}

func (s *sharingService) Unshare(ctx context.Context, target models.FileObject, shareID int64, confirm Confirmer) error {
	if !lo.Contains(target.SharingIDs(), shareID) {
		return fmt.Errorf("%w: %d", ErrNoSuchShare, shareID)
	}

	entries, err := s.api.SharedByMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shares: %w", err)
	}

	grant := target
	grant.Sharings = lo.Filter(target.Sharings, func(fs models.FileSharing, _ int) bool { return fs.ID == shareID })

	if dups := sharing.DuplicateGrants(grant, sharing.Merge(entries)); len(dups) > 0 {
		names := lo.Map(dups, func(o models.FileObject, _ int) string { return o.ObjectKey })
		q := fmt.Sprintf("This share also grants access to %s. Revoke it anyway?", strings.Join(names, ", "))
		if confirm == nil || !confirm(q) {
			return common.ErrDeclined
		}
	}

	if err := s.api.Unshare(ctx, shareID); err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	s.log.Info(ctx, "share revoked", "key", target.ObjectKey, "share_id", shareID)
	return nil
}

// SearchUsers looks up users by name prefix. Answers are cached briefly since
// the REPL tends to repeat the same lookup while composing a share.
func (s *sharingService) SearchUsers(ctx context.Context, prefix string) ([]models.User, error) {
	if item := s.users.Get(prefix); item != nil {
		return item.Value(), nil
	}

	users, err := s.api.SearchUsers(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	s.users.Set(prefix, users, ttlcache.DefaultTTL)
	return users, nil
}
