package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/workspaces/pkg/search"
)

// ActivitySchema creates the activity table. It is valid for PostgreSQL and
// SQLite.
const ActivitySchema = `
CREATE TABLE IF NOT EXISTS activity_events (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_events_user_created ON activity_events(user_id, created_at);
`

const insertActivityQuery = `
INSERT INTO activity_events (id, user_id, type, title, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

// SQLActivityLog is a search.ActivityLog stored in an activity_events table
type SQLActivityLog struct {
	db *sql.DB
}

// NewSQLActivityLog creates an activity log over db
func NewSQLActivityLog(db *sql.DB) *SQLActivityLog {
	return &SQLActivityLog{db: db}
}

// Migrate creates the activity table when missing
func (l *SQLActivityLog) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(ActivitySchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate activity schema: %w", err)
		}
	}
	return nil
}

// Record inserts an event, assigning an id when it has none
func (l *SQLActivityLog) Record(ctx context.Context, event search.ActivityEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := l.db.ExecContext(ctx, insertActivityQuery,
		event.ID, event.UserID, event.Type, event.Title, event.Content, event.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert activity event: %w", err)
	}
	return event.ID, nil
}

// ListActivityEvents implements search.ActivityLog. An event matches the
// search term when any of its tokens appears in the title or content.
func (l *SQLActivityLog) ListActivityEvents(ctx context.Context, query search.ActivityQuery) ([]search.ActivityEvent, error) {
	stmt, args := buildActivityQuery(query)

	rows, err := l.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	var out []search.ActivityEvent
	for rows.Next() {
		var ev search.ActivityEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Type, &ev.Title, &ev.Content, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity events: %w", err)
	}
	return out, nil
}

func buildActivityQuery(query search.ActivityQuery) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{query.UserID}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(`SELECT id, user_id, type, title, content, created_at FROM activity_events WHERE user_id = $1`)

	if tokens := search.Tokenize(query.Filter.SearchTerm); len(tokens) > 0 {
		likes := make([]string, 0, len(tokens))
		for _, token := range tokens {
			likes = append(likes, "LOWER(title || ' ' || content) LIKE "+arg("%"+token+"%"))
		}
		b.WriteString(" AND (" + strings.Join(likes, " OR ") + ")")
	}
	if query.Filter.From != nil {
		b.WriteString(" AND created_at >= " + arg(query.Filter.From.UTC()))
	}
	if query.Filter.To != nil {
		b.WriteString(" AND created_at <= " + arg(query.Filter.To.UTC()))
	}
	b.WriteString(" ORDER BY created_at DESC, id")
	if query.Limit > 0 {
		b.WriteString(" LIMIT " + arg(query.Limit))
	}
	return b.String(), args
}
