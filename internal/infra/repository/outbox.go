package repository

import (
	"context"
	"errors"
	"time"

	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra"
	"loans-service/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, event_type, payload, processed, retry_count, last_error, created_at, processed_at`

type OutboxRepository struct {
	db *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Save(ctx context.Context, ev *outbox.Event) error {
	if err := insertEvent(ctx, r.db, ev); err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "failed to save outbox event", err)
	}
	return nil
}

func (r *OutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*outbox.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(infra.KindNotFound, "outbox event not found", err)
		}
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to find outbox event", err)
	}
	return ev, nil
}

// FindUnprocessed returns all undelivered events oldest-first. Poison events
// (retry budget exceeded) are included; the worker skips them so they stay
// inspectable.
func (r *OutboxRepository) FindUnprocessed(ctx context.Context) ([]*outbox.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM outbox_events WHERE processed = FALSE ORDER BY created_at ASC`)
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to list unprocessed events", err)
	}
	defer rows.Close()

	events := make([]*outbox.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to scan outbox event", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to iterate outbox events", err)
	}
	return events, nil
}

// MarkProcessed is idempotent: marking an already processed event changes
// nothing, which keeps duplicate worker deliveries harmless.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE outbox_events SET processed = TRUE, processed_at = $2
		 WHERE id = $1 AND processed = FALSE`,
		id, pgconv.TimestamptzFromTime(at))
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "failed to mark event processed", err)
	}
	return nil
}

func (r *OutboxRepository) IncrementRetry(ctx context.Context, id uuid.UUID, lastError string) error {
	if len(lastError) > 500 {
		lastError = lastError[:500]
	}
	_, err := r.db.Exec(ctx,
		`UPDATE outbox_events SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`,
		id, lastError)
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "failed to increment retry count", err)
	}
	return nil
}

func (r *OutboxRepository) CountUnprocessed(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM outbox_events WHERE processed = FALSE`).Scan(&count)
	if err != nil {
		return 0, infra.WrapRepoErr(infra.KindDBFailure, "failed to count unprocessed events", err)
	}
	return count, nil
}

func insertEvent(ctx context.Context, q querier, ev *outbox.Event) error {
	_, err := q.Exec(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, processed, retry_count, last_error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.EventType, []byte(ev.Payload), ev.Processed, ev.RetryCount,
		pgconv.TextFromPtr(ev.LastError),
		pgconv.TimestamptzFromTime(ev.CreatedAt),
		pgconv.TimestamptzFromPtr(ev.ProcessedAt),
	)
	return err
}

func scanEvent(row pgx.Row) (*outbox.Event, error) {
	var (
		id          pgtype.UUID
		eventType   string
		payload     []byte
		processed   bool
		retryCount  int
		lastError   pgtype.Text
		createdAt   pgtype.Timestamptz
		processedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &eventType, &payload, &processed, &retryCount, &lastError, &createdAt, &processedAt); err != nil {
		return nil, err
	}
	return &outbox.Event{
		ID:          pgconv.UUIDFromPgtype(id),
		EventType:   eventType,
		Payload:     payload,
		Processed:   processed,
		RetryCount:  retryCount,
		LastError:   pgconv.StringPtrFromPgtype(lastError),
		CreatedAt:   pgconv.TimeFromPgtype(createdAt),
		ProcessedAt: pgconv.TimePtrFromPgtype(processedAt),
	}, nil
}
