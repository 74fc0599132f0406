package repo_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonies/internal/db"
	"colonies/internal/deck"
	"colonies/internal/domain"
	"colonies/internal/migrate"
	"colonies/internal/repo"
	"colonies/internal/rules"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func newGame(id, key string, players [2]string) domain.Game {
	return rules.NewGame(deck.DefaultLayout(), rand.New(rand.NewPCG(1, 2)), id, key,
		[2]domain.Player{{UUID: players[0], Username: players[0]}, {UUID: players[1], Username: players[1]}},
		domain.Settings{LiveScoring: true}, now)
}

func TestMigrateIsIdempotent(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, migrate.Migrate(r.DB))
}

func TestInsertAndGetGame(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	g := newGame("id-1", "a::b:1", [2]string{"a", "b"})
	require.NoError(t, r.InsertGame(ctx, g))
	require.ErrorIs(t, r.InsertGame(ctx, g), repo.ErrExists)

	got, err := r.GetGame(ctx, "a::b:1")
	require.NoError(t, err)
	g.Chats = []domain.Chat{}
	assert.Equal(t, g, got)

	key, err := r.GameKeyByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "a::b:1", key)

	_, err = r.GetGame(ctx, "missing")
	require.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.GameKeyByID(ctx, "missing")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCommitTurnCompareAndSwap(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	l := deck.DefaultLayout()
	g := newGame("id-1", "a::b:1", [2]string{"a", "b"})
	require.NoError(t, r.InsertGame(ctx, g))

	seat := rules.PlayerTurn(g.Turn, g.FirstPlayer)
	out, err := rules.Apply(l, g, rules.Move{Seat: seat, Turn: 0, Action: rules.DiscardAction(g.Cards.Hands[seat][0])}, now.Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, r.CommitTurn(ctx, g.Key, 0, out.Game))
	require.ErrorIs(t, r.CommitTurn(ctx, g.Key, 0, out.Game), repo.ErrConflict)
	require.ErrorIs(t, r.CommitTurn(ctx, "missing", 0, out.Game), repo.ErrNotFound)

	got, err := r.GetGame(ctx, g.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Turn)
	assert.Equal(t, out.Game.Cards, got.Cards)
	assert.Equal(t, out.Game.Turns, got.Turns)
	assert.Equal(t, out.Game.UpdatedAt, got.UpdatedAt)
}

func TestCommitTurnPersistsCompletion(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	l := deck.DefaultLayout()
	g := newGame("id-1", "a::b:1", [2]string{"a", "b"})
	require.NoError(t, r.InsertGame(ctx, g))

	for g.CompletedAt == nil {
		seat := rules.PlayerTurn(g.Turn, g.FirstPlayer)
		out, err := rules.Apply(l, g, rules.Move{Seat: seat, Turn: g.Turn, Action: rules.DiscardAction(g.Cards.Hands[seat][0])}, now)
		require.NoError(t, err)
		require.NoError(t, r.CommitTurn(ctx, g.Key, g.Turn, out.Game))
		g = out.Game
	}

	got, err := r.GetGame(ctx, g.Key)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Scoring)
	assert.Equal(t, *g.Scoring, *got.Scoring)
	assert.Equal(t, domain.StatusCompleted, got.Status())
	assert.Empty(t, got.Cards.Deck)
}

func TestListGamesByParticipant(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	g1 := newGame("id-1", "a::b:1", [2]string{"a", "b"})
	g2 := newGame("id-2", "c::a:2", [2]string{"c", "a"})
	g2.UpdatedAt = domain.Timestamp(now.Add(time.Hour))
	g3 := newGame("id-3", "b::c:3", [2]string{"b", "c"})
	for _, g := range []domain.Game{g1, g2, g3} {
		require.NoError(t, r.InsertGame(ctx, g))
	}

	games, err := r.ListGames(ctx, "a")
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "id-2", games[0].ID)
	assert.Equal(t, "id-1", games[1].ID)

	games, err = r.ListGames(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestAppendChat(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	g := newGame("id-1", "a::b:1", [2]string{"a", "b"})
	require.NoError(t, r.InsertGame(ctx, g))

	require.NoError(t, r.AppendChat(ctx, g.Key, domain.Chat{UUID: "a", Message: "hi", CreatedAt: domain.Timestamp(now)}))
	require.NoError(t, r.AppendChat(ctx, g.Key, domain.Chat{UUID: "b", Message: "hello", CreatedAt: domain.Timestamp(now.Add(time.Second))}))
	require.ErrorIs(t, r.AppendChat(ctx, "missing", domain.Chat{UUID: "a", Message: "?"}), repo.ErrNotFound)

	got, err := r.GetGame(ctx, g.Key)
	require.NoError(t, err)
	require.Len(t, got.Chats, 2)
	assert.Equal(t, "hi", got.Chats[0].Message)
	assert.Equal(t, "b", got.Chats[1].UUID)
	assert.Equal(t, 0, got.Turn, "chat does not advance the turn")
	assert.Equal(t, domain.Timestamp(now.Add(time.Second)), got.UpdatedAt)
}

func TestAccounts(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	ts := domain.Timestamp(now)
	require.NoError(t, r.UpsertAccount(ctx, domain.Account{UUID: "u1", Username: "alice", Email: "a@example.com", CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, r.UpsertAccount(ctx, domain.Account{UUID: "u2", Username: "bob", Verified: true, CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, r.UpsertAccount(ctx, domain.Account{UUID: "u1", Username: "alice", Email: "a@example.com", Verified: true, CreatedAt: ts, UpdatedAt: ts}))

	a, err := r.AccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UUID)
	assert.True(t, a.Verified)

	b, err := r.AccountByUUID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", b.Username)

	_, err = r.AccountByUsername(ctx, "carol")
	require.ErrorIs(t, err, repo.ErrNotFound)

	all, err := r.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
}
