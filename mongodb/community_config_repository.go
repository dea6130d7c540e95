package mongodb

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
)

// CommunityConfigRepository reads per-community onboarding configuration.
// Writes happen only through operator tooling (linkctl); the linking core
// treats the collection as read-only.
type CommunityConfigRepository struct {
	configs *mongo.Collection
}

func NewCommunityConfigRepository(db *mongo.Database) *CommunityConfigRepository {
	return &CommunityConfigRepository{configs: db.Collection(CommunityConfigCollection)}
}

// CommunityConfig implements domain.LinkStore.CommunityConfig.
func (r *CommunityConfigRepository) CommunityConfig(ctx context.Context, communityID string) (*domain.CommunityConfig, error) {
	var cfg domain.CommunityConfig
	err := r.configs.FindOne(ctx, bson.M{"community_id": communityID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, linkerr.ErrConfigNotFound
		}
		log.Error().Err(err).Str("community_id", communityID).Msg("Error retrieving community config")
		return nil, linkerr.NewStorageError("community config lookup", err)
	}
	return &cfg, nil
}

// SetCommunityConfig upserts a community's configuration.
func (r *CommunityConfigRepository) SetCommunityConfig(ctx context.Context, cfg *domain.CommunityConfig) error {
	_, err := r.configs.ReplaceOne(ctx,
		bson.M{"community_id": cfg.CommunityID},
		cfg,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return linkerr.NewStorageError("community config set", err)
	}
	log.Info().Str("community_id", cfg.CommunityID).Msg("Community config updated")
	return nil
}

// Store bundles the link and community-config repositories into the single
// domain.LinkStore surface both processes consume.
type Store struct {
	*LinkRepository
	*CommunityConfigRepository
}

var _ domain.LinkStore = (*Store)(nil)

func NewStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	links, err := NewLinkRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	return &Store{
		LinkRepository:            links,
		CommunityConfigRepository: NewCommunityConfigRepository(db),
	}, nil
}
