package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"repoinsight/internal/fingerprint"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS repo_snapshots (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_repo_snapshots_workspace ON repo_snapshots(workspace_id);
CREATE TABLE IF NOT EXISTS fingerprints (
    id BIGSERIAL PRIMARY KEY,
    feature_name TEXT NOT NULL,
    name TEXT NOT NULL,
    sha TEXT NOT NULL,
    data JSONB,
    UNIQUE(feature_name, name, sha)
);
CREATE TABLE IF NOT EXISTS repo_fingerprints (
    repo_snapshot_id TEXT NOT NULL REFERENCES repo_snapshots(id) ON DELETE CASCADE,
    fingerprint_id BIGINT NOT NULL REFERENCES fingerprints(id),
    path TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (repo_snapshot_id, fingerprint_id, path)
);
CREATE INDEX IF NOT EXISTS idx_repo_fingerprints_fp ON repo_fingerprints(fingerprint_id);
`

// PostgresStore persists analyses in three tables: repo_snapshots,
// fingerprints (unique per value) and the repo_fingerprints join.
type PostgresStore struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewPostgresStoreFromDB(db), nil
}

func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	// A failed attempt is retried by the next call.
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) Persist(ctx context.Context, ra RepoAnalysis) error {
	ra.WorkspaceID = strings.TrimSpace(ra.WorkspaceID)
	if ra.WorkspaceID == "" || ra.WorkspaceID == AllWorkspaces {
		return fmt.Errorf("workspace_id is required")
	}
	if ra.ID.Owner == "" || ra.ID.Repo == "" {
		return fmt.Errorf("repo owner and name are required")
	}
	if ra.SnapshotID == "" {
		ra.SnapshotID = SnapshotID(ra.WorkspaceID, ra.ID)
	}
	if ra.Timestamp.IsZero() {
		ra.Timestamp = time.Now()
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO repo_snapshots (id, workspace_id, owner, name, url, path, timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET workspace_id=EXCLUDED.workspace_id, owner=EXCLUDED.owner, name=EXCLUDED.name,
    url=EXCLUDED.url, path=EXCLUDED.path, timestamp=EXCLUDED.timestamp
`, ra.SnapshotID, ra.WorkspaceID, ra.ID.Owner, ra.ID.Repo, ra.ID.URL, ra.ID.Path, ra.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", ra.SnapshotID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM repo_fingerprints WHERE repo_snapshot_id=$1`, ra.SnapshotID); err != nil {
		return fmt.Errorf("clear fingerprints of %s: %w", ra.SnapshotID, err)
	}
	for _, fp := range ra.Fingerprints {
		var data sql.NullString
		if len(fp.Data) > 0 {
			data = sql.NullString{String: string(fp.Data), Valid: true}
		}
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO fingerprints (feature_name, name, sha, data)
VALUES ($1, $2, $3, $4)
ON CONFLICT (feature_name, name, sha)
DO UPDATE SET data=EXCLUDED.data
RETURNING id
`, fp.Type, fp.Name, fp.SHA, data).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert fingerprint %s/%s: %w", fp.Type, fp.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO repo_fingerprints (repo_snapshot_id, fingerprint_id, path)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`, ra.SnapshotID, id, fp.Path)
		if err != nil {
			return fmt.Errorf("link fingerprint %s/%s: %w", fp.Type, fp.Name, err)
		}
	}
	return tx.Commit()
}

// workspacePredicate appends the bound workspace argument, if any.
func workspacePredicate(column, workspaceID string, args []any) (string, []any) {
	if IsAllWorkspaces(workspaceID) {
		return "TRUE", args
	}
	args = append(args, strings.TrimSpace(workspaceID))
	return fmt.Sprintf("%s = $%d", column, len(args)), args
}

func nameOperator(byName bool) string {
	if byName {
		return "="
	}
	return "<>"
}

func loadReposQuery(f Filter) (string, []any) {
	where, args := workspacePredicate("s.workspace_id", f.WorkspaceID, nil)
	if f.Owner != "" {
		args = append(args, f.Owner)
		where += fmt.Sprintf(" AND s.owner = $%d", len(args))
	}
	return `
SELECT s.id, s.workspace_id, s.owner, s.name, s.url, s.path, s.timestamp,
       f.feature_name, f.name, f.sha, f.data, rf.path
FROM repo_snapshots s
LEFT JOIN repo_fingerprints rf ON rf.repo_snapshot_id = s.id
LEFT JOIN fingerprints f ON f.id = rf.fingerprint_id
WHERE ` + where + `
ORDER BY s.timestamp, s.id, f.feature_name, f.name, f.sha`, args
}

func (s *PostgresStore) LoadRepos(ctx context.Context, f Filter) ([]RepoAnalysis, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query, args := loadReposQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RepoAnalysis
	index := map[string]int{}
	for rows.Next() {
		var ra RepoAnalysis
		var fType, fName, fSHA, fPath sql.NullString
		var data []byte
		if err := rows.Scan(&ra.SnapshotID, &ra.WorkspaceID, &ra.ID.Owner, &ra.ID.Repo, &ra.ID.URL, &ra.ID.Path,
			&ra.Timestamp, &fType, &fName, &fSHA, &data, &fPath); err != nil {
			return nil, err
		}
		i, ok := index[ra.SnapshotID]
		if !ok {
			ra.Fingerprints = []fingerprint.FP{}
			out = append(out, ra)
			i = len(out) - 1
			index[ra.SnapshotID] = i
		}
		if !fType.Valid {
			continue
		}
		out[i].Fingerprints = append(out[i].Fingerprints, fingerprint.FP{
			Type: fType.String,
			Name: fName.String,
			SHA:  fSHA.String,
			Data: data,
			Path: fPath.String,
		})
	}
	return out, rows.Err()
}

func (s *PostgresStore) Snapshot(ctx context.Context, snapshotID string) (RepoAnalysis, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return RepoAnalysis{}, err
	}
	var ra RepoAnalysis
	err := s.db.QueryRowContext(ctx, `SELECT id, workspace_id, owner, name, url, path, timestamp FROM repo_snapshots WHERE id=$1`, snapshotID).
		Scan(&ra.SnapshotID, &ra.WorkspaceID, &ra.ID.Owner, &ra.ID.Repo, &ra.ID.URL, &ra.ID.Path, &ra.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return RepoAnalysis{}, fmt.Errorf("snapshot %s: %w", snapshotID, ErrNotFound)
	}
	if err != nil {
		return RepoAnalysis{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT f.feature_name, f.name, f.sha, f.data, rf.path
FROM repo_fingerprints rf JOIN fingerprints f ON f.id = rf.fingerprint_id
WHERE rf.repo_snapshot_id = $1
ORDER BY f.feature_name, f.name, f.sha`, snapshotID)
	if err != nil {
		return RepoAnalysis{}, err
	}
	defer rows.Close()
	ra.Fingerprints = []fingerprint.FP{}
	for rows.Next() {
		var fp fingerprint.FP
		var data []byte
		if err := rows.Scan(&fp.Type, &fp.Name, &fp.SHA, &data, &fp.Path); err != nil {
			return RepoAnalysis{}, err
		}
		fp.Data = data
		ra.Fingerprints = append(ra.Fingerprints, fp)
	}
	return ra, rows.Err()
}

func usageQuery(workspaceID, kind string) (string, []any) {
	where, args := workspacePredicate("s.workspace_id", workspaceID, nil)
	if kind != "" && kind != AllKinds {
		args = append(args, kind)
		where += fmt.Sprintf(" AND f.feature_name = $%d", len(args))
	}
	return `
SELECT f.feature_name, f.name, f.sha, COUNT(DISTINCT rf.repo_snapshot_id)
FROM fingerprints f
JOIN repo_fingerprints rf ON rf.fingerprint_id = f.id
JOIN repo_snapshots s ON s.id = rf.repo_snapshot_id
WHERE ` + where + `
GROUP BY f.feature_name, f.name, f.sha`, args
}

func (s *PostgresStore) FingerprintUsage(ctx context.Context, workspaceID, kind string) ([]fingerprint.FingerprintUsage, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query, args := usageQuery(workspaceID, kind)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[fingerprint.Kind]map[string]int{}
	for rows.Next() {
		var k fingerprint.Kind
		var sha string
		var n int
		if err := rows.Scan(&k.Type, &k.Name, &sha, &n); err != nil {
			return nil, err
		}
		if counts[k] == nil {
			counts[k] = map[string]int{}
		}
		counts[k][sha] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fingerprint.UsageOf(counts), nil
}

func (s *PostgresStore) DistinctFingerprintKinds(ctx context.Context, workspaceID string) ([]fingerprint.Kind, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	where, args := workspacePredicate("s.workspace_id", workspaceID, nil)
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT f.feature_name, f.name
FROM fingerprints f
JOIN repo_fingerprints rf ON rf.fingerprint_id = f.id
JOIN repo_snapshots s ON s.id = rf.repo_snapshot_id
WHERE `+where+`
ORDER BY f.feature_name, f.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []fingerprint.Kind
	for rows.Next() {
		var k fingerprint.Kind
		if err := rows.Scan(&k.Type, &k.Name); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func valueGroupsQuery(q GroupQuery) (string, []any) {
	args := []any{q.Type, q.Name}
	where, args := workspacePredicate("s.workspace_id", q.WorkspaceID, args)
	return `
SELECT f.name, f.sha, f.data, s.id, s.owner, s.name, s.url, s.path
FROM fingerprints f
JOIN repo_fingerprints rf ON rf.fingerprint_id = f.id
JOIN repo_snapshots s ON s.id = rf.repo_snapshot_id
WHERE f.feature_name = $1 AND f.name ` + nameOperator(q.ByName) + ` $2 AND ` + where + `
ORDER BY f.name, f.sha, s.owner, s.name, s.id`, args
}

func withoutQuery(q GroupQuery) (string, []any) {
	args := []any{q.Type, q.Name}
	where, args := workspacePredicate("s.workspace_id", q.WorkspaceID, args)
	return `
SELECT s.owner, s.name, s.url, s.path
FROM repo_snapshots s
WHERE ` + where + ` AND s.id NOT IN (
    SELECT rf.repo_snapshot_id
    FROM repo_fingerprints rf JOIN fingerprints f ON f.id = rf.fingerprint_id
    WHERE f.feature_name = $1 AND f.name ` + nameOperator(q.ByName) + ` $2
)
ORDER BY s.owner, s.name, s.id`, args
}

func (s *PostgresStore) QueryValueRepoGroups(ctx context.Context, q GroupQuery) ([]ValueRepoGroup, error) {
	if strings.TrimSpace(q.Type) == "" {
		return nil, fmt.Errorf("fingerprint type is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query, args := valueGroupsQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query value groups for %s: %w", q.Type, err)
	}
	defer rows.Close()

	var out []ValueRepoGroup
	lastKey := ""
	seen := map[string]bool{}
	for rows.Next() {
		var name, sha, snapshotID string
		var data []byte
		var ref fingerprint.RepoRef
		if err := rows.Scan(&name, &sha, &data, &snapshotID, &ref.Owner, &ref.Repo, &ref.URL, &ref.Path); err != nil {
			return nil, err
		}
		key := name + "\x00" + sha
		if key != lastKey {
			out = append(out, ValueRepoGroup{Fingerprint: &fingerprint.FP{Type: q.Type, Name: name, SHA: sha, Data: data}})
			lastKey = key
			seen = map[string]bool{}
		}
		// The same value under several paths of one repo counts once.
		if seen[snapshotID] {
			continue
		}
		seen[snapshotID] = true
		g := &out[len(out)-1]
		g.Repos = append(g.Repos, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !q.IncludeWithout {
		return out, nil
	}

	query, args = withoutQuery(q)
	wrows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query repos without %s: %w", q.Type, err)
	}
	defer wrows.Close()
	var without []fingerprint.RepoRef
	for wrows.Next() {
		var ref fingerprint.RepoRef
		if err := wrows.Scan(&ref.Owner, &ref.Repo, &ref.URL, &ref.Path); err != nil {
			return nil, err
		}
		without = append(without, ref)
	}
	if err := wrows.Err(); err != nil {
		return nil, err
	}
	if len(without) > 0 {
		out = append(out, ValueRepoGroup{Repos: without})
	}
	return out, nil
}
