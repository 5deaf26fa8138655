package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lib/pq"
	geojson "github.com/paulmach/go.geojson"
)

// PostGISSource reads layer features straight from PostGIS, for deployments
// where the dashboard skips the HTTP services and talks to the analysis
// database directly. Each layer maps to a table with a `geom` geometry
// column and an optional `properties` jsonb column.
type PostGISSource struct {
	db *sql.DB
}

func OpenPostGIS(dsn string) (*PostGISSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgis ping: %w", err)
	}
	return &PostGISSource{db: db}, nil
}

func (s *PostGISSource) Close() error {
	return s.db.Close()
}

// FetchLayer builds a FeatureCollection from ST_AsGeoJSON rows. Rows whose
// geometry fails to decode are skipped with a log line rather than failing
// the whole layer.
func (s *PostGISSource) FetchLayer(ctx context.Context, table string) (*geojson.FeatureCollection, error) {
	query := fmt.Sprintf(
		`SELECT ST_AsGeoJSON(geom), COALESCE(properties::text, '{}') FROM %s`,
		pq.QuoteIdentifier(table),
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query layer table %q: %w", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error closing rows for table %q: %v", table, err)
		}
	}()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var geomJSON, propsJSON string
		if err := rows.Scan(&geomJSON, &propsJSON); err != nil {
			return nil, err
		}
		g, err := geojson.UnmarshalGeometry([]byte(geomJSON))
		if err != nil {
			log.Printf("Skipping row with undecodable geometry in %q: %v", table, err)
			continue
		}
		f := geojson.NewFeature(g)
		if err := json.Unmarshal([]byte(propsJSON), &f.Properties); err != nil {
			f.Properties = map[string]interface{}{}
		}
		fc.AddFeature(f)
	}
	return fc, rows.Err()
}
