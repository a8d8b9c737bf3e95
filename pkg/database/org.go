package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrgScope wraps a dedicated connection with org context set for RLS
// policy evaluation. Holding one connection per scope also means a
// transaction begun on Conn covers every statement issued through it.
type OrgScope struct {
	Conn *pgxpool.Conn
}

// Close resets the org context and releases the connection to the pool.
// This MUST be called to prevent org context leaking to the next request.
func (s *OrgScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_org_id")
	s.Conn.Release()
}

// WithOrg acquires a connection and sets the org context for RLS.
// The returned OrgScope MUST be closed with defer scope.Close().
func (db *DB) WithOrg(ctx context.Context, orgID uuid.UUID) (*OrgScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_org_id', $1, false)", orgID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &OrgScope{Conn: conn}, nil
}

// WithoutOrg acquires a connection without org context. Use this for
// startup tasks that need full access (catalog seeding, migrations).
// The returned OrgScope MUST be closed with defer scope.Close().
func (db *DB) WithoutOrg(ctx context.Context) (*OrgScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &OrgScope{Conn: conn}, nil
}
