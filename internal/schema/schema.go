// Package schema holds the hand-maintained warehouse schemas and the
// declarative source path to column mappings used when flattening provider
// payloads. Schema changes are made here, never inferred from payloads.
package schema

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

type FieldType string

const (
	Integer   FieldType = "INTEGER"
	Float     FieldType = "FLOAT"
	String    FieldType = "STRING"
	Timestamp FieldType = "TIMESTAMP"
	Boolean   FieldType = "BOOLEAN"
)

const (
	PlayedAtColumn  = "played_at"
	QueriedAtColumn = "queried_at"
	ArtistIDColumn  = "track_artists_id"
)

type Column struct {
	Name     string
	Type     FieldType
	Repeated bool
}

// TableSchema is an ordered list of columns.
type TableSchema []Column

// Mapping binds a dot separated path in the flattened payload to a column.
type Mapping struct {
	Source string
	Column string
}

// Tracks is the destination schema for recently played tracks.
var Tracks = TableSchema{
	{Name: "track_name", Type: String},
	{Name: "track_explicit", Type: Boolean},
	{Name: "track_popularity", Type: Integer},
	{Name: "track_id", Type: String},
	{Name: "track_track_number", Type: Integer},
	{Name: "track_type", Type: String},
	{Name: PlayedAtColumn, Type: Timestamp},
	{Name: "context_type", Type: String},
	{Name: "context_external_urls_spotify", Type: String},
	{Name: ArtistIDColumn, Type: String},
	{Name: "track_artists_name", Type: String},
	{Name: "track_artists_type", Type: String},
	{Name: "track_album_album_type", Type: String},
	{Name: "track_album_id", Type: String},
	{Name: "track_album_images_url", Type: String},
	{Name: "track_album_images_height", Type: Integer},
	{Name: "track_album_name", Type: String},
	{Name: "track_album_release_date", Type: String},
	{Name: "track_album_release_date_precision", Type: String},
	{Name: "track_album_total_tracks", Type: Integer},
	{Name: "track_duration_ms", Type: Integer},
	{Name: QueriedAtColumn, Type: Timestamp},
}

// TrackMappings projects a flattened recently played item onto Tracks.
// Artists and album images are reduced to their first element before flattening.
var TrackMappings = []Mapping{
	{Source: "track.name", Column: "track_name"},
	{Source: "track.explicit", Column: "track_explicit"},
	{Source: "track.popularity", Column: "track_popularity"},
	{Source: "track.id", Column: "track_id"},
	{Source: "track.track_number", Column: "track_track_number"},
	{Source: "track.type", Column: "track_type"},
	{Source: "played_at", Column: PlayedAtColumn},
	{Source: "context.type", Column: "context_type"},
	{Source: "context.external_urls.spotify", Column: "context_external_urls_spotify"},
	{Source: "track.artists.id", Column: ArtistIDColumn},
	{Source: "track.artists.name", Column: "track_artists_name"},
	{Source: "track.artists.type", Column: "track_artists_type"},
	{Source: "track.album.album_type", Column: "track_album_album_type"},
	{Source: "track.album.id", Column: "track_album_id"},
	{Source: "track.album.images.url", Column: "track_album_images_url"},
	{Source: "track.album.images.height", Column: "track_album_images_height"},
	{Source: "track.album.name", Column: "track_album_name"},
	{Source: "track.album.release_date", Column: "track_album_release_date"},
	{Source: "track.album.release_date_precision", Column: "track_album_release_date_precision"},
	{Source: "track.album.total_tracks", Column: "track_album_total_tracks"},
	{Source: "track.duration_ms", Column: "track_duration_ms"},
}

// Artists is the destination schema for artist metadata.
var Artists = TableSchema{
	{Name: "id", Type: String},
	{Name: "name", Type: String},
	{Name: "main_genre", Type: String},
	{Name: "genres", Type: String, Repeated: true},
	{Name: "popularity", Type: Integer},
	{Name: "followers_total", Type: Integer},
	{Name: "images_height", Type: Integer},
	{Name: "type", Type: String},
	{Name: "images_url", Type: String},
	{Name: "external_urls_spotify", Type: String},
	{Name: QueriedAtColumn, Type: Timestamp},
}

var ArtistMappings = []Mapping{
	{Source: "external_urls.spotify", Column: "external_urls_spotify"},
	{Source: "followers.total", Column: "followers_total"},
	{Source: "genres", Column: "genres"},
	{Source: "id", Column: "id"},
	{Source: "images.height", Column: "images_height"},
	{Source: "images.url", Column: "images_url"},
	{Source: "name", Column: "name"},
	{Source: "popularity", Column: "popularity"},
	{Source: "type", Column: "type"},
	{Source: "main_genre", Column: "main_genre"},
}

var validTypes = lo.SliceToMap([]FieldType{Integer, Float, String, Timestamp, Boolean}, func(t FieldType) (FieldType, struct{}) {
	return t, struct{}{}
})

// Columns returns the column names in schema order.
func (ts TableSchema) Columns() []string {
	return lo.Map(ts, func(c Column, _ int) string { return c.Name })
}

func (ts TableSchema) Column(name string) (Column, bool) {
	return lo.Find(ts, func(c Column) bool { return c.Name == name })
}

func (ts TableSchema) Validate() error {
	if len(ts) == 0 {
		return errors.New("empty schema")
	}
	seen := make(map[string]struct{}, len(ts))
	for i, c := range ts {
		if c.Name == "" {
			return fmt.Errorf("column %d: empty name", i)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("column %q: duplicate name", c.Name)
		}
		seen[c.Name] = struct{}{}
		if _, ok := validTypes[c.Type]; !ok {
			return fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
	}
	return nil
}

// ValidateMappings checks that every mapping targets a column of the schema exactly once.
func ValidateMappings(ts TableSchema, mappings []Mapping) error {
	seen := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		if m.Source == "" {
			return fmt.Errorf("mapping to %q: empty source", m.Column)
		}
		if _, ok := ts.Column(m.Column); !ok {
			return fmt.Errorf("mapping %q: unknown column %q", m.Source, m.Column)
		}
		if _, ok := seen[m.Column]; ok {
			return fmt.Errorf("column %q: mapped more than once", m.Column)
		}
		seen[m.Column] = struct{}{}
	}
	return nil
}
