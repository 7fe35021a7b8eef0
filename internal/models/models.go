// package models defines the data model for the meeting recording service
package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Model defines the base interface for all persistent models.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model into the database
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its ID
	Update(ctx context.Context, model T) error                      // Update modifies an existing model in the database
	Delete(ctx context.Context, id string) error                    // Delete removes a model from the database by its ID
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Metadata is a free-form JSON object stored in a TEXT column.
type Metadata map[string]any

// String returns the string stored under key, or "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Value implements [driver.Valuer].
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements [sql.Scanner].
func (m *Metadata) Scan(src any) error {
	*m = Metadata{}
	raw, err := textBytes(src)
	if err != nil || len(raw) == 0 {
		return err
	}
	return json.Unmarshal(raw, m)
}

// Tags is a JSON string list stored in a TEXT column.
type Tags []string

// Value implements [driver.Valuer].
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

// Scan implements [sql.Scanner].
func (t *Tags) Scan(src any) error {
	*t = Tags{}
	raw, err := textBytes(src)
	if err != nil || len(raw) == 0 {
		return err
	}
	return json.Unmarshal(raw, t)
}

// Has reports whether tag is present.
func (t Tags) Has(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

func textBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
