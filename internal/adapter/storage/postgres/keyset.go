package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pmc-orchestrator/internal/core/ports"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// psql builds queries with $n placeholders for pgx.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// keysetPredicate resolves a page cursor into a "strictly after the anchor
// row" predicate for (orderCol DESC, id DESC) listings. The anchor must
// exist inside the same filtered window, otherwise the cursor is invalid
// (ports.ErrCursorOutOfWindow).
func keysetPredicate(ctx context.Context, pool Pool, table, orderCol string, conds []sq.Sqlizer, p ports.Page) (sq.Sqlizer, error) {
	if p.AfterID == "" {
		return nil, nil
	}

	qb := psql.Select(orderCol).From(table).Where(sq.Eq{"id": p.AfterID})
	for _, c := range conds {
		qb = qb.Where(c)
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cursor anchor query: %w", err)
	}

	var anchor time.Time
	if err := pool.QueryRow(ctx, query, args...).Scan(&anchor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrCursorOutOfWindow
		}
		return nil, fmt.Errorf("resolve cursor anchor: %w", err)
	}

	return sq.Or{
		sq.Lt{orderCol: anchor},
		sq.And{sq.Eq{orderCol: anchor}, sq.Lt{"id": p.AfterID}},
	}, nil
}

// pageSelect assembles the filtered, cursored, limit+1 listing query.
func pageSelect(columns []string, table, orderCol string, conds []sq.Sqlizer, after sq.Sqlizer, limit int) sq.SelectBuilder {
	qb := psql.Select(columns...).From(table)
	for _, c := range conds {
		qb = qb.Where(c)
	}
	if after != nil {
		qb = qb.Where(after)
	}
	// One extra row decides has_more without a count query.
	return qb.OrderBy(orderCol+" DESC", "id DESC").Limit(uint64(limit + 1))
}
