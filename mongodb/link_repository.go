package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
)

// LinkRepository stores committed chat-user to wiki-account links. Commit
// relies on the unique index, not application locking: both processes can
// race on the same chat user and exactly one insert wins.
type LinkRepository struct {
	links *mongo.Collection
}

// NewLinkRepository ensures the uniqueness index and returns the repository.
func NewLinkRepository(ctx context.Context, db *mongo.Database) (*LinkRepository, error) {
	coll := db.Collection(LinkedAccountsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chat_user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &LinkRepository{links: coll}, nil
}

// Commit implements domain.LinkStore.Commit as a single insert-if-absent.
func (r *LinkRepository) Commit(ctx context.Context, chatUserID string, wikiAccountID int64) error {
	link := domain.LinkedAccount{
		ChatUserID:    chatUserID,
		WikiAccountID: wikiAccountID,
		LinkedAt:      time.Now().UTC(),
	}
	_, err := r.links.InsertOne(ctx, link)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return linkerr.ErrAlreadyLinked
		}
		log.Error().Err(err).Str("chat_user_id", chatUserID).Msg("Error committing linked account")
		return linkerr.NewStorageError("link commit", err)
	}

	log.Debug().Str("chat_user_id", chatUserID).Int64("wiki_account_id", wikiAccountID).Msg("Linked account committed")
	return nil
}

// Lookup implements domain.LinkStore.Lookup.
func (r *LinkRepository) Lookup(ctx context.Context, chatUserID string) (*domain.LinkedAccount, error) {
	var link domain.LinkedAccount
	err := r.links.FindOne(ctx, bson.M{"chat_user_id": chatUserID}).Decode(&link)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, linkerr.ErrLinkNotFound
		}
		log.Error().Err(err).Str("chat_user_id", chatUserID).Msg("Error retrieving linked account")
		return nil, linkerr.NewStorageError("link lookup", err)
	}
	return &link, nil
}

// Unlink removes the chat user's link. Only operator tooling calls this;
// the linking core itself never deletes a committed link.
func (r *LinkRepository) Unlink(ctx context.Context, chatUserID string) error {
	res, err := r.links.DeleteOne(ctx, bson.M{"chat_user_id": chatUserID})
	if err != nil {
		return linkerr.NewStorageError("link unlink", err)
	}
	if res.DeletedCount == 0 {
		return linkerr.ErrLinkNotFound
	}
	log.Info().Str("chat_user_id", chatUserID).Msg("Linked account removed")
	return nil
}
