package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type OperatorStore struct {
	db *sql.DB
}

func NewOperatorStore(db *sql.DB) *OperatorStore {
	return &OperatorStore{db: db}
}

func scanOperator(s scanner) (*model.Operator, error) {
	var o model.Operator
	var role string
	err := s.Scan(&o.ID, &o.Username, &o.PasswordHash, &role, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Role = model.Role(role)
	return &o, nil
}

const operatorCols = `id, username, password_hash, role, created_at, updated_at`

// Create inserts an operator. A taken username yields sentinel.ErrConflict.
func (s *OperatorStore) Create(ctx context.Context, username, passwordHash string, role model.Role) (*model.Operator, error) {
	q := database.Conn(ctx, s.db)
	result, err := q.ExecContext(ctx,
		`INSERT INTO operators (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, string(role),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: username %q already exists", sentinel.ErrConflict, username)
	}
	if err != nil {
		return nil, fmt.Errorf("insert operator: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *OperatorStore) GetByID(ctx context.Context, id int64) (*model.Operator, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+operatorCols+` FROM operators WHERE id = ?`, id)
	o, err := scanOperator(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get operator: %w", err)
	}
	return o, nil
}

func (s *OperatorStore) GetByUsername(ctx context.Context, username string) (*model.Operator, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+operatorCols+` FROM operators WHERE username = ?`, username)
	o, err := scanOperator(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get operator by username: %w", err)
	}
	return o, nil
}

func (s *OperatorStore) List(ctx context.Context) ([]model.Operator, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, `SELECT `+operatorCols+` FROM operators ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var operators []model.Operator
	for rows.Next() {
		o, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		operators = append(operators, *o)
	}
	return operators, rows.Err()
}

func (s *OperatorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM operators`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operators: %w", err)
	}
	return n, nil
}

func (s *OperatorStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE operators SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *OperatorStore) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE operators SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), now(), id,
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// Delete removes an operator and their sessions. Operators still referenced
// by submissions or events yield sentinel.ErrConflict.
func (s *OperatorStore) Delete(ctx context.Context, id int64) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM operators WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: operator %d still has submissions or events on record", sentinel.ErrConflict, id)
	}
	if err != nil {
		return fmt.Errorf("delete operator: %w", err)
	}
	return nil
}
