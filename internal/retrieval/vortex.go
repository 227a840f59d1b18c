package retrieval

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// VortexSource queries the Vortex legal-document database: a MySQL table of
// pre-chunked Thai legal texts with a FULLTEXT index.
//
// Expected table structure:
//
//	legal_chunks (
//	    id INT PRIMARY KEY,
//	    content TEXT,           -- chunk text (Thai/English)
//	    source VARCHAR(500),    -- e.g. "Civil Code Section 420" or case number
//	    category VARCHAR(100),  -- e.g. "civil_code", "supreme_court"
//	    FULLTEXT(content)
//	)
type VortexSource struct {
	db *sql.DB
}

// VortexConfig holds MySQL connection parameters for the Vortex database.
type VortexConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN formats the config as a go-sql-driver DSN with utf8mb4, which Thai
// content requires.
func (c VortexConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenVortex opens a connection pool to the Vortex database and verifies it
// with a ping.
func OpenVortex(ctx context.Context, cfg VortexConfig) (*VortexSource, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open vortex database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping vortex database: %w", err)
	}
	return &VortexSource{db: db}, nil
}

// NewVortexSource wraps an existing database handle. Used by tests.
func NewVortexSource(db *sql.DB) *VortexSource {
	return &VortexSource{db: db}
}

// Name implements Source.
func (s *VortexSource) Name() string {
	return "vortex"
}

// Search runs a FULLTEXT natural-language search and returns chunks ordered
// by relevance score, best first.
func (s *VortexSource) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content, source,
		       MATCH(content) AGAINST(? IN NATURAL LANGUAGE MODE) AS score
		FROM legal_chunks
		WHERE MATCH(content) AGAINST(? IN NATURAL LANGUAGE MODE)
		ORDER BY score DESC
		LIMIT ?`,
		query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("vortex search failed: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			content string
			source  sql.NullString
			score   float64
		)
		if err := rows.Scan(&content, &source, &score); err != nil {
			return nil, fmt.Errorf("failed to scan vortex row: %w", err)
		}

		chunk := Chunk{Source: "Vortex DB", Content: content, Score: score}
		if source.Valid && source.String != "" {
			chunk.Source = source.String
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vortex row iteration failed: %w", err)
	}

	return chunks, nil
}

// Close releases the underlying connection pool.
func (s *VortexSource) Close() error {
	return s.db.Close()
}
