package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// catalogQueries resolves tenant-owned reference entities against q.
type catalogQueries struct {
	q      querier
	mapper *ErrorMapper
}

// GetStudio retrieves a studio by ID.
func (c catalogQueries) GetStudio(ctx context.Context, id string) (persistence.Studio, error) {
	var (
		studio    persistence.Studio
		createdAt string
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, name, timezone, created_at FROM studios WHERE id = ?`, id,
	).Scan(&studio.ID, &studio.Name, &studio.Timezone, &createdAt)
	if err != nil {
		return persistence.Studio{}, c.mapper.MapError(err)
	}
	if studio.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Studio{}, err
	}
	return studio, nil
}

// GetTeacher retrieves a teacher owned by studioID.
func (c catalogQueries) GetTeacher(ctx context.Context, studioID, id string) (persistence.Teacher, error) {
	var (
		teacher   persistence.Teacher
		createdAt string
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, studio_id, first_name, last_name, email, created_at
		FROM teachers WHERE id = ? AND studio_id = ?`, id, studioID,
	).Scan(&teacher.ID, &teacher.StudioID, &teacher.FirstName, &teacher.LastName, &teacher.Email, &createdAt)
	if err != nil {
		return persistence.Teacher{}, c.mapper.MapError(err)
	}
	if teacher.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Teacher{}, err
	}
	return teacher, nil
}

// GetLocation retrieves a location owned by studioID.
func (c catalogQueries) GetLocation(ctx context.Context, studioID, id string) (persistence.Location, error) {
	var (
		location  persistence.Location
		createdAt string
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, studio_id, name, address, created_at
		FROM locations WHERE id = ? AND studio_id = ?`, id, studioID,
	).Scan(&location.ID, &location.StudioID, &location.Name, &location.Address, &createdAt)
	if err != nil {
		return persistence.Location{}, c.mapper.MapError(err)
	}
	if location.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Location{}, err
	}
	return location, nil
}

// GetClassType retrieves a class type owned by studioID.
func (c catalogQueries) GetClassType(ctx context.Context, studioID, id string) (persistence.ClassType, error) {
	var (
		classType persistence.ClassType
		createdAt string
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, studio_id, name, duration_minutes, capacity, created_at
		FROM class_types WHERE id = ? AND studio_id = ?`, id, studioID,
	).Scan(&classType.ID, &classType.StudioID, &classType.Name, &classType.DurationMinutes, &classType.Capacity, &createdAt)
	if err != nil {
		return persistence.ClassType{}, c.mapper.MapError(err)
	}
	if classType.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ClassType{}, err
	}
	return classType, nil
}

// CatalogRepository stores studios and their reference entities.
type CatalogRepository struct {
	catalogQueries
	pool *ConnectionPool
}

// NewCatalogRepository creates a new SQLite catalog repository
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{
		catalogQueries: catalogQueries{q: pool.DB(), mapper: NewErrorMapper()},
		pool:           pool,
	}
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// CreateStudio inserts a studio.
func (r *CatalogRepository) CreateStudio(ctx context.Context, studio persistence.Studio) error {
	if studio.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO studios (id, name, timezone, created_at) VALUES (?, ?, ?, ?)`,
		studio.ID, studio.Name, studio.Timezone, formatTime(createdAtOrNow(studio.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// CreateTeacher inserts a teacher.
func (r *CatalogRepository) CreateTeacher(ctx context.Context, teacher persistence.Teacher) error {
	if teacher.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO teachers (id, studio_id, first_name, last_name, email, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		teacher.ID, teacher.StudioID, teacher.FirstName, teacher.LastName, teacher.Email, formatTime(createdAtOrNow(teacher.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// CreateLocation inserts a location.
func (r *CatalogRepository) CreateLocation(ctx context.Context, location persistence.Location) error {
	if location.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO locations (id, studio_id, name, address, created_at) VALUES (?, ?, ?, ?, ?)`,
		location.ID, location.StudioID, location.Name, location.Address, formatTime(createdAtOrNow(location.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// CreateClassType inserts a class type.
func (r *CatalogRepository) CreateClassType(ctx context.Context, classType persistence.ClassType) error {
	if classType.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO class_types (id, studio_id, name, duration_minutes, capacity, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		classType.ID, classType.StudioID, classType.Name, classType.DurationMinutes, classType.Capacity, formatTime(createdAtOrNow(classType.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// CreateClient inserts a client.
func (r *CatalogRepository) CreateClient(ctx context.Context, client persistence.Client) error {
	if client.ID == "" {
		return persistence.ErrConstraintViolation
	}
	var dob sql.NullString
	if client.DateOfBirth != nil {
		dob = sql.NullString{String: client.DateOfBirth.Format(dateLayout), Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO clients (id, studio_id, first_name, last_name, email, phone, date_of_birth, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID, client.StudioID, client.FirstName, client.LastName, client.Email, client.Phone, dob,
		formatTime(createdAtOrNow(client.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// GetClient retrieves a client owned by studioID.
func (r *CatalogRepository) GetClient(ctx context.Context, studioID, id string) (persistence.Client, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+clientColumns("c")+` FROM clients c WHERE c.id = ? AND c.studio_id = ?`, id, studioID)
	if err != nil {
		return persistence.Client{}, r.mapper.MapError(err)
	}
	defer rows.Close()

	clients, err := scanClients(rows)
	if err != nil {
		return persistence.Client{}, err
	}
	if len(clients) == 0 {
		return persistence.Client{}, persistence.ErrNotFound
	}
	return clients[0], nil
}

func clientColumns(alias string) string {
	p := alias + "."
	return p + "id, " + p + "studio_id, " + p + "first_name, " + p + "last_name, " + p + "email, " +
		p + "phone, " + p + "date_of_birth, " + p + "created_at"
}

type rowScanner interface {
	Scan(dest ...any) error
}

// clientRow holds the raw columns selected by clientColumns.
type clientRow struct {
	client    persistence.Client
	dob       sql.NullString
	createdAt string
}

func (r *clientRow) dest() []any {
	return []any{&r.client.ID, &r.client.StudioID, &r.client.FirstName, &r.client.LastName,
		&r.client.Email, &r.client.Phone, &r.dob, &r.createdAt}
}

func (r *clientRow) decode() (persistence.Client, error) {
	client := r.client
	var err error
	if client.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return persistence.Client{}, err
	}
	if r.dob.Valid && r.dob.String != "" {
		parsed, err := time.Parse(dateLayout, r.dob.String)
		if err != nil {
			return persistence.Client{}, errors.Join(errors.New("sqlite: parse date_of_birth"), err)
		}
		client.DateOfBirth = &parsed
	}
	return client, nil
}

func scanClient(row rowScanner, extra ...any) (persistence.Client, error) {
	var raw clientRow
	if err := row.Scan(append(raw.dest(), extra...)...); err != nil {
		return persistence.Client{}, err
	}
	return raw.decode()
}

func scanClients(rows *sql.Rows) ([]persistence.Client, error) {
	var clients []persistence.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}
