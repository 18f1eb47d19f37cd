package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// HookBinding enables a discovered hook for flip events. Config is passed to
// the hook with every request.
type HookBinding struct {
	ID        string          `json:"id"`
	HookName  string          `json:"hook_name"`
	Config    json.RawMessage `json:"config"`
	Enabled   bool            `json:"enabled"`
	CreatedAt time.Time       `json:"created_at"`
}

// BindingRepository provides CRUD operations for hook bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the hook binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

// Create inserts a new binding.
func (r *BindingRepository) Create(b *HookBinding) error {
	b.CreatedAt = time.Now()

	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO hook_bindings (id, hook_name, config, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.HookName, string(config), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*HookBinding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT id, hook_name, config, enabled, created_at FROM hook_bindings WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings, oldest first.
func (r *BindingRepository) List() ([]*HookBinding, error) {
	return r.query(`SELECT id, hook_name, config, enabled, created_at FROM hook_bindings ORDER BY created_at`)
}

// ListEnabled retrieves the bindings that should fire, oldest first.
func (r *BindingRepository) ListEnabled() ([]*HookBinding, error) {
	return r.query(`SELECT id, hook_name, config, enabled, created_at FROM hook_bindings WHERE enabled = 1 ORDER BY created_at`)
}

func (r *BindingRepository) query(q string) ([]*HookBinding, error) {
	rows, err := r.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*HookBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding.
func (r *BindingRepository) Update(b *HookBinding) error {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	enabled := 0
	if b.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE hook_bindings SET hook_name = ?, config = ?, enabled = ? WHERE id = ?`,
		b.HookName, string(config), enabled, b.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM hook_bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func scanBinding(row scanner) (*HookBinding, error) {
	b := &HookBinding{}
	var config string
	var enabled int

	if err := row.Scan(&b.ID, &b.HookName, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}
