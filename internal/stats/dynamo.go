// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/google/uuid"
	"github.com/guregu/dynamo"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

// userRecord is the DynamoDB item shape for one user's aggregate
// counters. Grounded on mk48's cloud/db Score/Server dynamo-tagged
// structs. Writes are an unconditional get-then-Put; no conditional
// (Put().If) write guards against a concurrent update.
type userRecord struct {
	UserID      string `dynamo:"user_id"`
	DisplayName string `dynamo:"display_name"`
	TotalPoints int    `dynamo:"total_points"`
	TotalWins   int    `dynamo:"total_wins"`
	TotalGames  int    `dynamo:"total_games"`
}

// counterRecord is the DynamoDB item shape for the process-wide
// operational counters, keyed by a fixed name.
type counterRecord struct {
	Name  string `dynamo:"name"`
	Value int    `dynamo:"value"`
}

// Dynamo is the production Stats implementation, backed by DynamoDB.
type Dynamo struct {
	usersTable    dynamo.Table
	countersTable dynamo.Table
}

// NewDynamo constructs a Dynamo store against tables named
// "<tablePrefix>-users" and "<tablePrefix>-counters".
func NewDynamo(sess *session.Session, tablePrefix string) *Dynamo {
	db := dynamo.NewFromIface(dynamodb.New(sess))
	return &Dynamo{
		usersTable:    db.Table(tablePrefix + "-users"),
		countersTable: db.Table(tablePrefix + "-counters"),
	}
}

func (d *Dynamo) getUser(ctx context.Context, userID uuid.UUID) (userRecord, bool, error) {
	var rec userRecord
	err := d.usersTable.Get("user_id", userID.String()).Consistent(true).OneWithContext(ctx, &rec)
	if err == dynamo.ErrNotFound {
		return userRecord{}, false, nil
	}
	if err != nil {
		return userRecord{}, false, fmt.Errorf("stats: get user: %w", err)
	}
	return rec, true, nil
}

func (d *Dynamo) upsertUser(ctx context.Context, userID uuid.UUID, displayName string, mutate func(*userRecord)) error {
	rec, _, err := d.getUser(ctx, userID)
	if err != nil {
		return err
	}
	rec.UserID = userID.String()
	if displayName != "" {
		rec.DisplayName = displayName
	}
	mutate(&rec)
	if err := d.usersTable.Put(rec).RunWithContext(ctx); err != nil {
		return fmt.Errorf("stats: put user: %w", err)
	}
	return nil
}

func (d *Dynamo) AddPoints(ctx context.Context, userID uuid.UUID, displayName string, delta int) error {
	return d.upsertUser(ctx, userID, displayName, func(r *userRecord) { r.TotalPoints += delta })
}

func (d *Dynamo) IncrementGames(ctx context.Context, userID uuid.UUID, displayName string) error {
	return d.upsertUser(ctx, userID, displayName, func(r *userRecord) { r.TotalGames++ })
}

func (d *Dynamo) IncrementWins(ctx context.Context, winnerID uuid.UUID, displayName string) error {
	return d.upsertUser(ctx, winnerID, displayName, func(r *userRecord) { r.TotalWins++ })
}

func (d *Dynamo) GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var recs []userRecord
	iter := d.usersTable.Scan().Iter()
	for {
		var rec userRecord
		if !iter.NextWithContext(ctx, &rec) {
			break
		}
		recs = append(recs, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stats: scan users: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(recs))
	for _, r := range recs {
		id, err := uuid.Parse(r.UserID)
		if err != nil {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      id,
			DisplayName: r.DisplayName,
			TotalPoints: r.TotalPoints,
			TotalWins:   r.TotalWins,
			TotalGames:  r.TotalGames,
		})
	}

	sortByPointsDescending(entries)
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (d *Dynamo) GetUserStats(ctx context.Context, userID uuid.UUID) (domain.LeaderboardEntry, error) {
	rec, ok, err := d.getUser(ctx, userID)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if !ok {
		return domain.LeaderboardEntry{}, fmt.Errorf("stats: no record for user %s", userID)
	}

	leaderboard, err := d.GetLeaderboard(ctx, 0)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	rank := len(leaderboard)
	for _, e := range leaderboard {
		if e.UserID == userID {
			rank = e.Rank
			break
		}
	}

	return domain.LeaderboardEntry{
		UserID:      userID,
		DisplayName: rec.DisplayName,
		TotalPoints: rec.TotalPoints,
		TotalWins:   rec.TotalWins,
		TotalGames:  rec.TotalGames,
		Rank:        rank,
	}, nil
}

func (d *Dynamo) bumpCounter(ctx context.Context, name string) error {
	var rec counterRecord
	err := d.countersTable.Get("name", name).Consistent(true).OneWithContext(ctx, &rec)
	if err != nil && err != dynamo.ErrNotFound {
		return fmt.Errorf("stats: get counter %s: %w", name, err)
	}
	rec.Name = name
	rec.Value++
	if err := d.countersTable.Put(rec).RunWithContext(ctx); err != nil {
		return fmt.Errorf("stats: put counter %s: %w", name, err)
	}
	return nil
}

func (d *Dynamo) IncrementGamesServed(ctx context.Context) error {
	return d.bumpCounter(ctx, "games_served")
}

func (d *Dynamo) IncrementPlayersServed(ctx context.Context) error {
	return d.bumpCounter(ctx, "players_served")
}

func sortByPointsDescending(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
}
