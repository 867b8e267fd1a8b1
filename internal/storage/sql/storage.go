package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/storage"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const dbErrUniqueViolation = "23505"

const eventColumns = `e.id, e.label, e.description, e.starts_at, e.ends_at, e.duration, e."interval", ` +
	`e.frequency, e.sun, e.mon, e.tue, e.wed, e.thu, e.fri, e.sat`

type Config struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	driver   string
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

type eventRow struct {
	ID          string         `db:"id"`
	Label       string         `db:"label"`
	Description string         `db:"description"`
	StartsAt    time.Time      `db:"starts_at"`
	EndsAt      sql.NullTime   `db:"ends_at"`
	Duration    int            `db:"duration"`
	Interval    sql.NullString `db:"interval"`
	Frequency   sql.NullInt64  `db:"frequency"`
	Sun         bool           `db:"sun"`
	Mon         bool           `db:"mon"`
	Tue         bool           `db:"tue"`
	Wed         bool           `db:"wed"`
	Thu         bool           `db:"thu"`
	Fri         bool           `db:"fri"`
	Sat         bool           `db:"sat"`
}

type tagRow struct {
	EventID string `db:"event_id"`
	TagID   string `db:"tag_id"`
	Value   string `db:"value"`
}

type memberRow struct {
	EventID  string `db:"event_id"`
	MemberID string `db:"member_id"`
	Owner    bool   `db:"owner"`
	LeadTime int    `db:"lead_time"`
}

func New(config Config) *Storage {
	driver := config.Driver
	if driver == "" {
		driver = "postgres"
	}
	return &Storage{
		driver:   driver,
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

// NewWithDB wraps an already opened connection.
func NewWithDB(db *sqlx.DB) *Storage {
	return &Storage{driver: db.DriverName(), db: db}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		s.driver,
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Save writes the event, its tags and its members in one transaction.
func (s *Storage) Save(ctx context.Context, e *event.Definition) (id string, err error) {
	if e.StartsAt.IsZero() {
		return "", storage.ErrMissingStart
	}
	r := toRow(e)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("failed to rollback save of event %q: %v", r.ID, rbErr)
		}
	}()

	if r.ID == "" {
		err = tx.GetContext(
			ctx,
			&id,
			`INSERT INTO sked_events(label, description, starts_at, ends_at, duration, "interval", frequency, `+
				"sun, mon, tue, wed, thu, fri, sat) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id",
			r.Label, r.Description, r.StartsAt, r.EndsAt, r.Duration, r.Interval, r.Frequency,
			r.Sun, r.Mon, r.Tue, r.Wed, r.Thu, r.Fri, r.Sat)
		if isUniqueViolation(err) {
			return "", fmt.Errorf("duplicate ID: %w", storage.ErrDuplicateEventID)
		}
		if err != nil {
			return "", fmt.Errorf("failed to insert event: %w", err)
		}
	} else {
		var found bool
		err = tx.GetContext(
			ctx,
			&found,
			`UPDATE sked_events SET label=$2, description=$3, starts_at=$4, ends_at=$5, duration=$6, "interval"=$7, `+
				"frequency=$8, sun=$9, mon=$10, tue=$11, wed=$12, thu=$13, fri=$14, sat=$15 "+
				"WHERE id=$1 RETURNING TRUE",
			r.ID, r.Label, r.Description, r.StartsAt, r.EndsAt, r.Duration, r.Interval, r.Frequency,
			r.Sun, r.Mon, r.Tue, r.Wed, r.Thu, r.Fri, r.Sat)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to update event with id %q: %w", r.ID, storage.ErrNotFoundEvent)
		}
		if err != nil {
			return "", fmt.Errorf("failed to update event %q: %w", r.ID, err)
		}
		id = r.ID
	}

	if err = s.replaceTags(ctx, tx, id, e.SortedTags()); err != nil {
		return "", err
	}
	if err = s.replaceMembers(ctx, tx, id, e); err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit event %q: %w", id, err)
	}
	return id, nil
}

func (s *Storage) replaceTags(ctx context.Context, tx *sqlx.Tx, id string, tags []event.Tag) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM sked_event_tags WHERE event_id=$1", id); err != nil {
		return fmt.Errorf("failed to clear tags of event %q: %w", id, err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO sked_event_tags(event_id, tag_id, value) VALUES($1, $2, $3)",
			id, tag.ID, tag.Value,
		); err != nil {
			return fmt.Errorf("failed to save tag %q of event %q: %w", tag.ID, id, err)
		}
	}
	return nil
}

func (s *Storage) replaceMembers(ctx context.Context, tx *sqlx.Tx, id string, e *event.Definition) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM sked_event_members WHERE event_id=$1", id); err != nil {
		return fmt.Errorf("failed to clear members of event %q: %w", id, err)
	}
	for _, memberID := range e.MemberIDs() {
		m := e.Members[memberID]
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO sked_event_members(event_id, member_id, owner, lead_time) VALUES($1, $2, $3, $4)",
			id, memberID, m.Owner, m.LeadTimeMinutes,
		); err != nil {
			return fmt.Errorf("failed to save member %q of event %q: %w", memberID, id, err)
		}
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, id string) error {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM sked_events WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return fmt.Errorf("failed to remove event with id %q: %w", id, err)
	}
	return nil
}

// RemoveExpiredBefore deletes one-off events that started and recurring events
// whose horizon passed before t. Tags and members are removed by cascade.
func (s *Storage) RemoveExpiredBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM sked_events WHERE `+
			`(COALESCE("interval", '') NOT IN ('daily', 'weekly', 'monthly') AND starts_at < $1) `+
			`OR ("interval" IN ('daily', 'weekly', 'monthly') AND ends_at < $1)`,
		t.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed events: %w", err)
	}
	return int(n), nil
}

func (s *Storage) FetchByID(ctx context.Context, id string) (*event.Definition, error) {
	var r eventRow
	err := s.db.GetContext(ctx, &r, "SELECT "+eventColumns+" FROM sked_events e WHERE e.id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event with id %q: %w", id, err)
	}
	events, err := s.attach(ctx, []eventRow{r})
	if err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (s *Storage) FetchCandidates(ctx context.Context, filter storage.Filter) ([]event.Definition, error) {
	query, args := candidatesQuery(filter)
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}
	return s.attach(ctx, rows)
}

func candidatesQuery(filter storage.Filter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.NotExpiredAsOf.IsZero() {
		where = append(where, "(e.ends_at IS NULL OR e.ends_at >= "+arg(filter.NotExpiredAsOf.UTC())+")")
	}
	if filter.MemberID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM sked_event_members m "+
			"WHERE m.event_id = e.id AND m.member_id = "+arg(filter.MemberID)+")")
	}
	if filter.PublicOnly {
		where = append(where, "NOT EXISTS (SELECT 1 FROM sked_event_members m WHERE m.event_id = e.id AND m.owner)")
	}
	tagIDs := make([]string, 0, len(filter.Tags))
	for id := range filter.Tags {
		tagIDs = append(tagIDs, id)
	}
	sort.Strings(tagIDs)
	for _, id := range tagIDs {
		cond := "EXISTS (SELECT 1 FROM sked_event_tags t WHERE t.event_id = e.id AND t.tag_id = " + arg(id)
		if v := filter.Tags[id]; v != "" {
			cond += " AND t.value = " + arg(v)
		}
		where = append(where, cond+")")
	}

	query := "SELECT " + eventColumns + " FROM sked_events e"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY e.starts_at, e.id", args
}

// attach loads tags and members of the rows with one query each.
func (s *Storage) attach(ctx context.Context, rows []eventRow) ([]event.Definition, error) {
	events := make([]event.Definition, 0, len(rows))
	if len(rows) == 0 {
		return events, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	query, args, err := sqlx.In("SELECT event_id, tag_id, value FROM sked_event_tags WHERE event_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build tags query: %w", err)
	}
	var tags []tagRow
	if err := s.db.SelectContext(ctx, &tags, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}

	query, args, err = sqlx.In(
		"SELECT event_id, member_id, owner, lead_time FROM sked_event_members WHERE event_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build members query: %w", err)
	}
	var members []memberRow
	if err := s.db.SelectContext(ctx, &members, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select members: %w", err)
	}

	byID := make(map[string]*event.Definition, len(rows))
	for _, r := range rows {
		events = append(events, fromRow(r))
	}
	for i := range events {
		byID[events[i].ID] = &events[i]
	}
	for _, t := range tags {
		if e, ok := byID[t.EventID]; ok {
			if e.Tags == nil {
				e.Tags = make(map[string]string)
			}
			e.Tags[t.TagID] = t.Value
		}
	}
	for _, m := range members {
		if e, ok := byID[m.EventID]; ok {
			if e.Members == nil {
				e.Members = make(map[string]event.Member)
			}
			e.Members[m.MemberID] = event.Member{Owner: m.Owner, LeadTimeMinutes: m.LeadTime}
		}
	}
	return events, nil
}

func toRow(e *event.Definition) eventRow {
	r := eventRow{
		ID:          e.ID,
		Label:       e.Label,
		Description: e.Description,
		StartsAt:    e.StartsAt.UTC(),
		Duration:    e.DurationMinutes,
		Sun:         e.Weekdays.Has(time.Sunday),
		Mon:         e.Weekdays.Has(time.Monday),
		Tue:         e.Weekdays.Has(time.Tuesday),
		Wed:         e.Weekdays.Has(time.Wednesday),
		Thu:         e.Weekdays.Has(time.Thursday),
		Fri:         e.Weekdays.Has(time.Friday),
		Sat:         e.Weekdays.Has(time.Saturday),
	}
	if e.HasEnd() {
		r.EndsAt = sql.NullTime{Time: e.EndsAt.UTC(), Valid: true}
	}
	if e.Interval != "" {
		r.Interval = sql.NullString{String: string(e.Interval), Valid: true}
	}
	if e.Frequency > 0 {
		r.Frequency = sql.NullInt64{Int64: int64(e.Frequency), Valid: true}
	}
	return r
}

func fromRow(r eventRow) event.Definition {
	e := event.Definition{
		ID:              r.ID,
		Label:           r.Label,
		Description:     r.Description,
		StartsAt:        r.StartsAt.UTC(),
		DurationMinutes: r.Duration,
		Interval:        event.IntervalOnce,
	}
	if r.EndsAt.Valid {
		e.EndsAt = r.EndsAt.Time.UTC()
	}
	if r.Interval.Valid && r.Interval.String != "" {
		e.Interval = event.Interval(r.Interval.String)
	}
	if r.Frequency.Valid {
		e.Frequency = int(r.Frequency.Int64)
	}
	for d, on := range []bool{r.Sun, r.Mon, r.Tue, r.Wed, r.Thu, r.Fri, r.Sat} {
		if on {
			e.Weekdays.Set(time.Weekday(d))
		}
	}
	return e
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == dbErrUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == dbErrUniqueViolation
	}
	return false
}
