package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// GetEmbedding returns a cached vector that has not expired at now.
func (db *DB) GetEmbedding(ctx context.Context, key string, now time.Time) ([]float32, bool, error) {
	var blob []byte
	err := db.conn.GetContext(ctx, &blob,
		`SELECT vector FROM embedding_cache WHERE key = ? AND expires_at > ?`, key, now.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding %s: %w", key, err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, false, fmt.Errorf("embedding %s: %w", key, err)
	}
	return vec, true, nil
}

// SetEmbedding stores a vector until now+ttl, replacing any existing entry.
func (db *DB) SetEmbedding(ctx context.Context, key, model string, vec []float32, now time.Time, ttl time.Duration) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO embedding_cache (key, model, vector, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			model = excluded.model,
			vector = excluded.vector,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, model, encodeVector(vec), now.UTC(), now.Add(ttl).UTC())
	if err != nil {
		return fmt.Errorf("failed to set embedding %s: %w", key, err)
	}
	return nil
}

// DeleteExpiredEmbeddings removes entries that expired at or before now.
func (db *DB) DeleteExpiredEmbeddings(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM embedding_cache WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired embeddings: %w", err)
	}
	return res.RowsAffected()
}

// Vectors are stored as little-endian float32s.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
