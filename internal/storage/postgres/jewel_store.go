package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// JewelStore persists jewels in the jewels table. source_url carries a
// unique constraint; the upsert relies on it for dedup.
// It assumes a table schema like:
// CREATE TABLE jewels (
//
//	id UUID PRIMARY KEY,
//	name TEXT NOT NULL,
//	source_url TEXT NOT NULL UNIQUE,
//	jewel_type TEXT,
//	metal TEXT,
//	gemstone TEXT,
//	gemstone_color TEXT,
//	metal_color TEXT,
//	color TEXT,
//	price_amount NUMERIC,
//	price_currency TEXT,
//	inferred JSONB,
//	vibe TEXT,
//	summary TEXT,
//	images JSONB,
//	raw_metadata JSONB,
//	created_at TIMESTAMPTZ NOT NULL,
//	updated_at TIMESTAMPTZ NOT NULL
//
// );
type JewelStore struct {
	pool dbConn
}

// NewJewelStore connects a pool and returns the store.
func NewJewelStore(ctx context.Context, dsn string, maxConns int32) (*JewelStore, error) {
	pool, err := newPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	return &JewelStore{pool: pool}, nil
}

// NewJewelStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJewelStoreWithPool(pool dbConn) (*JewelStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JewelStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JewelStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts the jewel or updates the row holding its source URL.
// Postgres serializes conflicting writes on the unique index, so two
// workers hitting the same URL cannot produce a torn row. The existing
// row's id and created_at survive an update.
func (s *JewelStore) Upsert(ctx context.Context, jewel pipeline.Jewel) (pipeline.Jewel, bool, error) {
	inferredJSON, err := json.Marshal(jewel.Inferred)
	if err != nil {
		return pipeline.Jewel{}, false, fmt.Errorf("marshal inferred attributes: %w", err)
	}
	imagesJSON, err := json.Marshal(jewel.Images)
	if err != nil {
		return pipeline.Jewel{}, false, fmt.Errorf("marshal images: %w", err)
	}
	metadataJSON, err := json.Marshal(jewel.RawMetadata)
	if err != nil {
		return pipeline.Jewel{}, false, fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
INSERT INTO jewels (
	id, source_url, name, jewel_type, metal, gemstone, gemstone_color,
	metal_color, color, price_amount, price_currency, inferred, vibe,
	summary, images, raw_metadata, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (source_url) DO UPDATE SET
	name = EXCLUDED.name,
	jewel_type = EXCLUDED.jewel_type,
	metal = EXCLUDED.metal,
	gemstone = EXCLUDED.gemstone,
	gemstone_color = EXCLUDED.gemstone_color,
	metal_color = EXCLUDED.metal_color,
	color = EXCLUDED.color,
	price_amount = EXCLUDED.price_amount,
	price_currency = EXCLUDED.price_currency,
	inferred = EXCLUDED.inferred,
	vibe = EXCLUDED.vibe,
	summary = EXCLUDED.summary,
	images = EXCLUDED.images,
	raw_metadata = EXCLUDED.raw_metadata,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at, (xmax = 0) AS inserted`

	var inserted bool
	err = s.pool.QueryRow(ctx, query,
		jewel.ID, jewel.SourceURL, jewel.Name, jewel.JewelType, jewel.Metal,
		jewel.Gemstone, jewel.GemstoneColor, jewel.MetalColor, jewel.Color,
		jewel.PriceAmount, jewel.PriceCurrency, inferredJSON, jewel.Vibe,
		jewel.Summary, imagesJSON, metadataJSON, jewel.CreatedAt, jewel.UpdatedAt,
	).Scan(&jewel.ID, &jewel.CreatedAt, &inserted)
	if err != nil {
		return pipeline.Jewel{}, false, fmt.Errorf("upsert jewel: %w", err)
	}
	return jewel, inserted, nil
}

// ListJewels returns one filtered page, newest first, with the unpaged
// total.
func (s *JewelStore) ListJewels(ctx context.Context, filter pipeline.JewelFilter) (pipeline.JewelPage, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Vibe != "" {
		args = append(args, filter.Vibe)
		conditions = append(conditions, fmt.Sprintf("vibe = $%d", len(args)))
	}
	if filter.Metal != "" {
		args = append(args, "%"+strings.ToLower(filter.Metal)+"%")
		conditions = append(conditions, fmt.Sprintf("lower(metal) LIKE $%d", len(args)))
	}
	if filter.JewelType != "" {
		args = append(args, filter.JewelType)
		conditions = append(conditions, fmt.Sprintf("jewel_type = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT count(*) FROM jewels" + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return pipeline.JewelPage{}, fmt.Errorf("count jewels: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	selectQuery := fmt.Sprintf(`
SELECT id, source_url, name, jewel_type, metal, gemstone, gemstone_color,
	metal_color, color, price_amount, price_currency, inferred, vibe,
	summary, images, raw_metadata, created_at, updated_at
FROM jewels%s
ORDER BY updated_at DESC
LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return pipeline.JewelPage{}, fmt.Errorf("select jewels: %w", err)
	}
	defer rows.Close()

	page := pipeline.JewelPage{Total: total, Limit: limit, Offset: offset}
	for rows.Next() {
		var (
			j            pipeline.Jewel
			inferredJSON []byte
			imagesJSON   []byte
			metadataJSON []byte
		)
		if err := rows.Scan(
			&j.ID, &j.SourceURL, &j.Name, &j.JewelType, &j.Metal, &j.Gemstone,
			&j.GemstoneColor, &j.MetalColor, &j.Color, &j.PriceAmount,
			&j.PriceCurrency, &inferredJSON, &j.Vibe, &j.Summary,
			&imagesJSON, &metadataJSON, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return pipeline.JewelPage{}, fmt.Errorf("scan jewel row: %w", err)
		}
		if len(inferredJSON) > 0 {
			if err := json.Unmarshal(inferredJSON, &j.Inferred); err != nil {
				return pipeline.JewelPage{}, fmt.Errorf("unmarshal inferred attributes: %w", err)
			}
		}
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &j.Images); err != nil {
				return pipeline.JewelPage{}, fmt.Errorf("unmarshal images: %w", err)
			}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &j.RawMetadata); err != nil {
				return pipeline.JewelPage{}, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		page.Items = append(page.Items, j)
	}
	if err := rows.Err(); err != nil {
		return pipeline.JewelPage{}, fmt.Errorf("iterate jewel rows: %w", err)
	}
	return page, nil
}
