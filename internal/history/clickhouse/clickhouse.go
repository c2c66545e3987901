package clickhouse

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/frpdeck/internal/history"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures the native-protocol connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// Sink writes events over the ClickHouse native protocol.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(opts Options) (*Sink, error) {
	if opts.Table == "" {
		opts.Table = "frpc_history"
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", opts.Table)
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Username == "" {
		opts.Username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: opts.Table}, nil
}

// EnsureTable creates the history table when missing.
func (s *Sink) EnsureTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		type String,
		occurred_at DateTime64(6),
		profile_id String,
		pid UInt32,
		log_path String,
		detail String
	) ENGINE = MergeTree()
	ORDER BY (profile_id, occurred_at)`)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, profile_id, pid, log_path, detail) VALUES (?, ?, ?, ?, ?, ?)`, s.table)
	pid := uint32(0)
	if e.PID > 0 {
		pid = uint32(e.PID) // #nosec G115 pids are positive and small
	}
	if err := s.conn.Exec(ctx, query, string(e.Type), e.OccurredAt, e.ProfileID, pid, e.LogPath, e.Detail); err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

// Count returns how many events were recorded for profile.
func (s *Sink) Count(ctx context.Context, profile string) (uint64, error) {
	var n uint64
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table+" WHERE profile_id = ?", profile).Scan(&n)
	return n, err
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
