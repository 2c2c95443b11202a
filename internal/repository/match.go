package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
)

var ErrMatchExists = errors.New("match already exists")

const matchKeyPrefix = "match:"

type MatchRepository interface {
	Create(ctx context.Context, match *entity.Match) error
	Update(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbMatch struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMatchRepository stores match snapshots that expire ttl after creation.
func NewMatchRepository(client *redis.Client, ttl time.Duration) MatchRepository {
	return &dbMatch{
		client: client,
		ttl:    ttl,
	}
}

// Create reserves the match id. It fails with ErrMatchExists when the id is taken.
func (that *dbMatch) Create(ctx context.Context, match *entity.Match) error {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	created, err := that.client.SetNX(ctx, matchKey(match.ID), matchJSON, that.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	if !created {
		return fmt.Errorf("%w: %s", ErrMatchExists, match.ID)
	}

	return nil
}

// Update overwrites an existing snapshot and keeps its expiry.
func (that *dbMatch) Update(ctx context.Context, match *entity.Match) error {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	err = that.client.SetArgs(ctx, matchKey(match.ID), matchJSON, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()

	if errors.Is(err, redis.Nil) {
		return apperror.ErrMatchNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	response, err := that.client.Get(ctx, matchKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w by id", err)
	}

	var existingMatch entity.Match
	if err = json.Unmarshal([]byte(response), &existingMatch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &existingMatch, nil
}

func (that *dbMatch) DeleteByID(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, matchKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete match by ID: %w", err)
	}

	return nil
}

func matchKey(id string) string {
	return matchKeyPrefix + id
}
