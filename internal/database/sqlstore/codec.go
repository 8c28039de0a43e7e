package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/facegraph/internal/database"
)

// JSONEmbedding stores vectors as a JSON array in a text column.
// Used by backends without a native vector type.
type JSONEmbedding struct {
	v []float64
}

// EncodeJSONEmbedding is a Dialect.EncodeEmbedding for text columns.
func EncodeJSONEmbedding(v []float64) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(b), nil
}

// NewJSONEmbedding is a Dialect.NewEmbeddingScanner for text columns.
func NewJSONEmbedding() EmbeddingScanner {
	return &JSONEmbedding{}
}

// Scan implements sql.Scanner.
func (e *JSONEmbedding) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		e.v = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return database.Malformed("unexpected embedding column type %T", src)
	}
	var out []float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return database.Malformed("decode embedding: %v", err)
	}
	e.v = out
	return nil
}

// Vector returns the decoded embedding.
func (e *JSONEmbedding) Vector() []float64 {
	return e.v
}

func encodeLandmarks(points []database.Point) (string, error) {
	if points == nil {
		points = []database.Point{}
	}
	b, err := json.Marshal(points)
	if err != nil {
		return "", fmt.Errorf("encode landmarks: %w", err)
	}
	return string(b), nil
}

func decodeLandmarks(raw []byte) ([]database.Point, error) {
	points := []database.Point{}
	if len(raw) == 0 {
		return points, nil
	}
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("decode landmarks: %w", err)
	}
	return points, nil
}
