package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/recsyscourse/requestor/internal/domain/model"
	"github.com/recsyscourse/requestor/internal/trials"
	"github.com/recsyscourse/requestor/pkg/logger"
)

// SQLiteStore implements Store over a SQLite database file.
//
// Timestamps are stored as integer unix nanoseconds so that MAX()
// aggregation and range filters behave predictably.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the
// schema migrations.
func NewSQLiteStore(dsn string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: keeps the foreign_keys pragma in effect for every
	// statement and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("repository")
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			team_id TEXT PRIMARY KEY,
			title TEXT NOT NULL UNIQUE,
			api_base_url TEXT NOT NULL UNIQUE,
			api_key TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			model_id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			UNIQUE (team_id, name),
			FOREIGN KEY (team_id) REFERENCES teams(team_id)
		)`,
		`CREATE TABLE IF NOT EXISTS trials (
			trial_id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			finished_at INTEGER,
			status TEXT NOT NULL,
			FOREIGN KEY (model_id) REFERENCES models(model_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_model ON trials(model_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			trial_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (trial_id, name),
			FOREIGN KEY (trial_id) REFERENCES trials(trial_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func isConstraintErr(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// AddTeam registers a new team with a fresh id.
func (s *SQLiteStore) AddTeam(ctx context.Context, info model.TeamInfo) (model.Team, error) {
	team := model.Team{
		TeamInfo:  info,
		TeamID:    uuid.New(),
		CreatedAt: s.now().UTC(),
	}
	team.UpdatedAt = team.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (team_id, title, api_base_url, api_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		team.TeamID.String(), team.Title, team.APIBaseURL, team.APIKey,
		toNanos(team.CreatedAt), toNanos(team.UpdatedAt))
	if isConstraintErr(err) {
		return model.Team{}, fmt.Errorf("add team %q: %w", info.Title, ErrTeamAlreadyExists)
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("add team: %w", err)
	}

	s.log.Info(ctx, "team registered",
		logger.String("team_id", team.TeamID.String()),
		logger.String("title", team.Title))
	return team, nil
}

// UpdateTeam replaces the mutable attributes of the team.
func (s *SQLiteStore) UpdateTeam(ctx context.Context, teamID uuid.UUID, info model.TeamInfo) (model.Team, error) {
	updatedAt := s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE teams SET title = ?, api_base_url = ?, api_key = ?, updated_at = ? WHERE team_id = ?`,
		info.Title, info.APIBaseURL, info.APIKey, toNanos(updatedAt), teamID.String())
	if isConstraintErr(err) {
		return model.Team{}, fmt.Errorf("update team %q: %w", info.Title, ErrTeamAlreadyExists)
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("update team: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.Team{}, fmt.Errorf("update team: %w", err)
	}
	if n == 0 {
		return model.Team{}, fmt.Errorf("update team %s: %w", teamID, ErrTeamNotFound)
	}

	return s.TeamByID(ctx, teamID)
}

const teamColumns = `team_id, title, api_base_url, api_key, created_at, updated_at`

func scanTeam(row interface{ Scan(...any) error }) (model.Team, error) {
	var team model.Team
	var id string
	var createdAt, updatedAt int64

	if err := row.Scan(&id, &team.Title, &team.APIBaseURL, &team.APIKey, &createdAt, &updatedAt); err != nil {
		return model.Team{}, err
	}

	teamID, err := uuid.Parse(id)
	if err != nil {
		return model.Team{}, fmt.Errorf("parse team id: %w", err)
	}
	team.TeamID = teamID
	team.CreatedAt = fromNanos(createdAt)
	team.UpdatedAt = fromNanos(updatedAt)
	return team, nil
}

// TeamByID looks a team up by id.
func (s *SQLiteStore) TeamByID(ctx context.Context, teamID uuid.UUID) (model.Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE team_id = ?`, teamID.String())

	team, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, fmt.Errorf("team %s: %w", teamID, ErrTeamNotFound)
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// TeamByTitle looks a team up by its display name.
func (s *SQLiteStore) TeamByTitle(ctx context.Context, title string) (model.Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE title = ?`, title)

	team, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, fmt.Errorf("team %q: %w", title, ErrTeamNotFound)
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// ListTeams returns all registered teams ordered by title.
func (s *SQLiteStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("list teams: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// AddModel registers a model under its team.
func (s *SQLiteStore) AddModel(ctx context.Context, info model.ModelInfo) (model.Model, error) {
	m := model.Model{
		ModelInfo: info,
		ModelID:   uuid.New(),
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO models (model_id, team_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ModelID.String(), m.TeamID.String(), m.Name, m.Description, toNanos(m.CreatedAt))
	if isConstraintErr(err) {
		// Either the (team, name) pair is taken or the team id is unknown.
		if _, terr := s.TeamByID(ctx, info.TeamID); terr != nil {
			return model.Model{}, terr
		}
		return model.Model{}, fmt.Errorf("add model %q: %w", info.Name, ErrModelAlreadyExists)
	}
	if err != nil {
		return model.Model{}, fmt.Errorf("add model: %w", err)
	}

	s.log.Info(ctx, "model registered",
		logger.String("model_id", m.ModelID.String()),
		logger.String("name", m.Name))
	return m, nil
}

const modelColumns = `model_id, team_id, name, description, created_at`

func scanModel(row interface{ Scan(...any) error }) (model.Model, error) {
	var m model.Model
	var id, teamID string
	var createdAt int64

	if err := row.Scan(&id, &teamID, &m.Name, &m.Description, &createdAt); err != nil {
		return model.Model{}, err
	}

	modelID, err := uuid.Parse(id)
	if err != nil {
		return model.Model{}, fmt.Errorf("parse model id: %w", err)
	}
	owner, err := uuid.Parse(teamID)
	if err != nil {
		return model.Model{}, fmt.Errorf("parse team id: %w", err)
	}
	m.ModelID = modelID
	m.TeamID = owner
	m.CreatedAt = fromNanos(createdAt)
	return m, nil
}

// ModelByID looks a model up by id.
func (s *SQLiteStore) ModelByID(ctx context.Context, modelID uuid.UUID) (model.Model, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE model_id = ?`, modelID.String())

	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Model{}, fmt.Errorf("model %s: %w", modelID, ErrModelNotFound)
	}
	if err != nil {
		return model.Model{}, fmt.Errorf("get model: %w", err)
	}
	return m, nil
}

// ModelByName looks a model up by team and display name.
func (s *SQLiteStore) ModelByName(ctx context.Context, teamID uuid.UUID, name string) (model.Model, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE team_id = ? AND name = ?`,
		teamID.String(), name)

	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Model{}, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}
	if err != nil {
		return model.Model{}, fmt.Errorf("get model: %w", err)
	}
	return m, nil
}

// ListModels returns the team's models ordered by name.
func (s *SQLiteStore) ListModels(ctx context.Context, teamID uuid.UUID) ([]model.Model, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE team_id = ? ORDER BY name`, teamID.String())
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []model.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CreateTrial records a new trial. The initial status must be non-terminal.
func (s *SQLiteStore) CreateTrial(ctx context.Context, modelID uuid.UUID, status model.TrialStatus) (model.Trial, error) {
	if err := trials.ValidateInitialStatus(status); err != nil {
		return model.Trial{}, err
	}

	trial := model.Trial{
		TrialID:   uuid.New(),
		ModelID:   modelID,
		CreatedAt: s.now().UTC(),
		Status:    status,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (trial_id, model_id, created_at, status) VALUES (?, ?, ?, ?)`,
		trial.TrialID.String(), modelID.String(), toNanos(trial.CreatedAt), string(status))
	if isConstraintErr(err) {
		return model.Trial{}, fmt.Errorf("create trial: %w", ErrModelNotFound)
	}
	if err != nil {
		return model.Trial{}, fmt.Errorf("create trial: %w", err)
	}

	return trial, nil
}

// StartTrial moves a waiting trial to started.
func (s *SQLiteStore) StartTrial(ctx context.Context, trialID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ? WHERE trial_id = ? AND status = ?`,
		string(model.TrialStatusStarted), trialID.String(), string(model.TrialStatusWaiting))
	if err != nil {
		return fmt.Errorf("start trial: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("start trial: %w", err)
	}
	if n == 0 {
		if _, terr := s.TrialByID(ctx, trialID); terr != nil {
			return terr
		}
		return fmt.Errorf("start trial %s: %w", trialID, ErrInvalidTransition)
	}
	return nil
}

// FinalizeTrial moves a trial into a terminal status and stamps finished_at.
func (s *SQLiteStore) FinalizeTrial(ctx context.Context, trialID uuid.UUID, status model.TrialStatus) error {
	if err := trials.ValidateFinalStatus(status); err != nil {
		return err
	}

	finishedAt := s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ?, finished_at = ? WHERE trial_id = ? AND status IN (?, ?)`,
		string(status), toNanos(finishedAt), trialID.String(),
		string(model.TrialStatusWaiting), string(model.TrialStatusStarted))
	if err != nil {
		return fmt.Errorf("finalize trial: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize trial: %w", err)
	}
	if n == 0 {
		if _, terr := s.TrialByID(ctx, trialID); terr != nil {
			return terr
		}
		return fmt.Errorf("finalize trial %s: %w", trialID, ErrInvalidTransition)
	}

	s.log.Info(ctx, "trial finalized",
		logger.String("trial_id", trialID.String()),
		logger.String("status", string(status)))
	return nil
}

// TrialByID looks a trial up by id.
func (s *SQLiteStore) TrialByID(ctx context.Context, trialID uuid.UUID) (model.Trial, error) {
	var trial model.Trial
	var id, modelID, status string
	var createdAt int64
	var finishedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT trial_id, model_id, created_at, finished_at, status FROM trials WHERE trial_id = ?`,
		trialID.String()).Scan(&id, &modelID, &createdAt, &finishedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trial{}, fmt.Errorf("trial %s: %w", trialID, ErrTrialNotFound)
	}
	if err != nil {
		return model.Trial{}, fmt.Errorf("get trial: %w", err)
	}

	tid, err := uuid.Parse(id)
	if err != nil {
		return model.Trial{}, fmt.Errorf("parse trial id: %w", err)
	}
	mid, err := uuid.Parse(modelID)
	if err != nil {
		return model.Trial{}, fmt.Errorf("parse model id: %w", err)
	}

	trial.TrialID = tid
	trial.ModelID = mid
	trial.CreatedAt = fromNanos(createdAt)
	trial.Status = model.TrialStatus(status)
	if finishedAt.Valid {
		t := fromNanos(finishedAt.Int64)
		trial.FinishedAt = &t
	}
	return trial, nil
}

// TrialStatsForDay counts the team's trials per status within the calendar
// day containing the given moment, in that moment's location.
func (s *SQLiteStore) TrialStatsForDay(ctx context.Context, teamID uuid.UUID, day time.Time) (model.TrialStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx,
		`SELECT tr.status, COUNT(*)
		 FROM trials tr
		 JOIN models mo ON mo.model_id = tr.model_id
		 WHERE mo.team_id = ? AND tr.created_at >= ? AND tr.created_at < ?
		 GROUP BY tr.status`,
		teamID.String(), toNanos(start), toNanos(end))
	if err != nil {
		return nil, fmt.Errorf("trial stats: %w", err)
	}
	defer rows.Close()

	stats := make(model.TrialStats)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("trial stats: %w", err)
		}
		stats[model.TrialStatus(status)] = count
	}
	return stats, rows.Err()
}

// AddMetrics persists all metric values for the trial in one transaction.
func (s *SQLiteStore) AddMetrics(ctx context.Context, trialID uuid.UUID, values []model.Metric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add metrics: %w", err)
	}
	defer tx.Rollback()

	for _, v := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO metrics (trial_id, name, value) VALUES (?, ?, ?)`,
			trialID.String(), v.Name, v.Value)
		if isConstraintErr(err) {
			var se sqlite3.Error
			if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
				return fmt.Errorf("add metrics: %w", ErrTrialNotFound)
			}
			return fmt.Errorf("add metric %q: %w", v.Name, ErrMetricAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("add metric %q: %w", v.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add metrics: %w", err)
	}
	return nil
}

// TrialMetrics returns the metric values recorded for a trial.
func (s *SQLiteStore) TrialMetrics(ctx context.Context, trialID uuid.UUID) ([]model.Metric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM metrics WHERE trial_id = ? ORDER BY name`,
		trialID.String())
	if err != nil {
		return nil, fmt.Errorf("trial metrics: %w", err)
	}
	defer rows.Close()

	var values []model.Metric
	for rows.Next() {
		var m model.Metric
		if err := rows.Scan(&m.Name, &m.Value); err != nil {
			return nil, fmt.Errorf("trial metrics: %w", err)
		}
		values = append(values, m)
	}
	return values, rows.Err()
}

// GlobalLeaderboardRows aggregates one row per team. Attempt counts, best
// scores and last attempt times only consider successful trials.
func (s *SQLiteStore) GlobalLeaderboardRows(ctx context.Context, metricName string) ([]model.GlobalLeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.title, MAX(m.value), COUNT(tr.trial_id), MAX(tr.created_at)
		 FROM teams t
		 LEFT JOIN models mo ON mo.team_id = t.team_id
		 LEFT JOIN trials tr ON tr.model_id = mo.model_id AND tr.status = ?
		 LEFT JOIN metrics m ON m.trial_id = tr.trial_id AND m.name = ?
		 GROUP BY t.team_id, t.title`,
		string(model.TrialStatusSuccess), metricName)
	if err != nil {
		return nil, fmt.Errorf("global leaderboard rows: %w", err)
	}
	defer rows.Close()

	var result []model.GlobalLeaderboardRow
	for rows.Next() {
		var row model.GlobalLeaderboardRow
		var best sql.NullFloat64
		var last sql.NullInt64

		if err := rows.Scan(&row.TeamName, &best, &row.NAttempts, &last); err != nil {
			return nil, fmt.Errorf("global leaderboard rows: %w", err)
		}
		if best.Valid {
			row.BestScore = &best.Float64
		}
		if last.Valid {
			t := fromNanos(last.Int64)
			row.LastAttempt = &t
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ByModelLeaderboardRows aggregates rows for (team, model) pairs with at
// least one successful trial.
func (s *SQLiteStore) ByModelLeaderboardRows(ctx context.Context, metricName string) ([]model.ModelLeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.title, mo.name, MAX(m.value), COUNT(tr.trial_id), MAX(tr.created_at)
		 FROM teams t
		 JOIN models mo ON mo.team_id = t.team_id
		 JOIN trials tr ON tr.model_id = mo.model_id AND tr.status = ?
		 LEFT JOIN metrics m ON m.trial_id = tr.trial_id AND m.name = ?
		 GROUP BY t.team_id, mo.model_id`,
		string(model.TrialStatusSuccess), metricName)
	if err != nil {
		return nil, fmt.Errorf("by-model leaderboard rows: %w", err)
	}
	defer rows.Close()

	var result []model.ModelLeaderboardRow
	for rows.Next() {
		var row model.ModelLeaderboardRow
		var best sql.NullFloat64
		var last int64

		if err := rows.Scan(&row.TeamName, &row.ModelName, &best, &row.NAttempts, &last); err != nil {
			return nil, fmt.Errorf("by-model leaderboard rows: %w", err)
		}
		row.BestScore = best.Float64
		row.LastAttempt = fromNanos(last)
		result = append(result, row)
	}
	return result, rows.Err()
}
