package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// SessionRepo implements session.Store on PostgreSQL.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo creates a SessionRepo using the given pool.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// wrapErr maps driver failures onto the domain taxonomy. Anything that is
// not a context cancellation is treated as the store being unreachable so
// the tracker's backlog takes over.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return shared.NewStoreUnavailableError("postgres", op, err)
}

// Append stores a closed session. Duplicate IDs and duplicate
// member/start/end intervals are ignored, the guild version only moves
// when a row was actually inserted.
func (r *SessionRepo) Append(ctx context.Context, s *session.Session) error {
	const op = "SessionRepo.Append"
	if !s.IsValid() {
		return shared.NewInvalidEventError("postgres", op, "invalid session")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr(op, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO sessions (id, guild_id, member_id, game, source, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`,
		s.ID, s.GuildID.String(), s.MemberID.String(), s.Game, s.Source.String(), s.StartedAt, s.EndedAt)
	if err != nil {
		return wrapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if err := bumpVersion(ctx, tx, s.GuildID); err != nil {
		return wrapErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx pgx.Tx, guildID shared.GuildID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO guild_versions (guild_id, version) VALUES ($1, 1)
		ON CONFLICT (guild_id) DO UPDATE SET version = guild_versions.version + 1`,
		guildID.String())
	return err
}

// Query returns matching sessions ordered by start time.
func (r *SessionRepo) Query(ctx context.Context, guildID shared.GuildID, filter session.QueryFilter) ([]*session.Session, error) {
	const op = "SessionRepo.Query"

	query := `
		SELECT id, guild_id, member_id, game, source, started_at, ended_at
		FROM sessions
		WHERE guild_id = $1`
	args := []any{guildID.String()}

	if filter.MemberID.IsValid() {
		args = append(args, filter.MemberID.String())
		query += fmt.Sprintf(" AND member_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND ended_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND started_at < $%d", len(args))
	}
	query += " ORDER BY started_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		s := &session.Session{}
		var guild, member, source string
		if err := rows.Scan(&s.ID, &guild, &member, &s.Game, &source, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, wrapErr(op, err)
		}
		s.GuildID = shared.GuildID(guild)
		s.MemberID = shared.MemberID(member)
		s.Source = session.Source(source)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// Prune removes sessions ended before cutoff and bumps the guild version
// in the same transaction so caches cannot observe a half-pruned guild.
func (r *SessionRepo) Prune(ctx context.Context, guildID shared.GuildID, cutoff time.Time) (int, error) {
	const op = "SessionRepo.Prune"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM sessions WHERE guild_id = $1 AND ended_at < $2`,
		guildID.String(), cutoff)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	removed := int(tag.RowsAffected())
	if removed == 0 {
		return 0, nil
	}

	if err := bumpVersion(ctx, tx, guildID); err != nil {
		return 0, wrapErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, wrapErr(op, err)
	}
	return removed, nil
}

// Version returns the guild's mutation counter.
func (r *SessionRepo) Version(ctx context.Context, guildID shared.GuildID) (int64, error) {
	const op = "SessionRepo.Version"

	var version int64
	err := r.pool.QueryRow(ctx,
		`SELECT version FROM guild_versions WHERE guild_id = $1`,
		guildID.String()).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return version, nil
}

// ResetGuild wipes a guild's history.
func (r *SessionRepo) ResetGuild(ctx context.Context, guildID shared.GuildID) error {
	const op = "SessionRepo.ResetGuild"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr(op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE guild_id = $1`, guildID.String()); err != nil {
		return wrapErr(op, err)
	}
	if err := bumpVersion(ctx, tx, guildID); err != nil {
		return wrapErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// Guilds lists guilds with stored sessions.
func (r *SessionRepo) Guilds(ctx context.Context) ([]shared.GuildID, error) {
	const op = "SessionRepo.Guilds"

	rows, err := r.pool.Query(ctx, `SELECT DISTINCT guild_id FROM sessions ORDER BY guild_id`)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []shared.GuildID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, shared.GuildID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}
