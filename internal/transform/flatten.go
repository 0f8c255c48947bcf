package transform

import (
	"fmt"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/rudderlabs/rudder-go-kit/jsonrs"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
)

// Flatten turns recently played items into rows projected onto schema.Tracks.
// Every row carries the same queriedAt. Output order follows input order.
func Flatten(events []model.RawEvent, queriedAt time.Time) ([]model.Row, error) {
	rows := make([]model.Row, 0, len(events))
	for i, event := range events {
		if !gjson.ValidBytes(event) {
			return nil, fmt.Errorf("item %d: invalid json", i)
		}
		if !gjson.GetBytes(event, "track").IsObject() {
			return nil, fmt.Errorf("item %d: track is not an object", i)
		}

		doc, err := firstOf(event, "track.artists")
		if err != nil {
			return nil, fmt.Errorf("item %d: reducing artists: %w", i, err)
		}
		if doc, err = firstOf(doc, "track.album.images"); err != nil {
			return nil, fmt.Errorf("item %d: reducing album images: %w", i, err)
		}
		if c := gjson.GetBytes(doc, "context"); !c.Exists() || c.Type == gjson.Null {
			if doc, err = sjson.SetRawBytes(doc, "context", []byte(`{}`)); err != nil {
				return nil, fmt.Errorf("item %d: setting empty context: %w", i, err)
			}
		}

		row, err := project(doc, schema.TrackMappings, nil)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		row[schema.QueriedAtColumn] = queriedAt
		rows = append(rows, row)
	}
	return rows, nil
}

// FlattenArtists turns artist objects into rows projected onto schema.Artists.
func FlattenArtists(events []model.RawEvent, queriedAt time.Time) ([]model.Row, error) {
	rows := make([]model.Row, 0, len(events))
	for i, event := range events {
		if !gjson.ValidBytes(event) || !gjson.ParseBytes(event).IsObject() {
			return nil, fmt.Errorf("artist %d: not a json object", i)
		}

		doc, err := firstOf(event, "images")
		if err != nil {
			return nil, fmt.Errorf("artist %d: reducing images: %w", i, err)
		}

		overrides := map[string]any{"genres": nil, "main_genre": nil}
		if g := gjson.GetBytes(doc, "genres"); g.IsArray() {
			genres := make([]string, 0, len(g.Array()))
			for _, genre := range g.Array() {
				genres = append(genres, genre.String())
			}
			overrides["genres"] = genres
			overrides["main_genre"] = mainGenre(genres)
		}

		row, err := project(doc, schema.ArtistMappings, overrides)
		if err != nil {
			return nil, fmt.Errorf("artist %d: %w", i, err)
		}
		row[schema.QueriedAtColumn] = queriedAt
		rows = append(rows, row)
	}
	return rows, nil
}

// firstOf replaces the array at path with its first element, or removes it when empty.
// Anything other than an array is left untouched.
func firstOf(doc []byte, path string) ([]byte, error) {
	r := gjson.GetBytes(doc, path)
	if !r.IsArray() {
		return doc, nil
	}
	elems := r.Array()
	if len(elems) == 0 {
		return sjson.DeleteBytes(doc, path)
	}
	return sjson.SetRawBytes(doc, path, []byte(elems[0].Raw))
}

// project flattens doc and keeps only the mapped paths. Overrides take precedence
// over flattened values and are used for values that must not be flattened.
func project(doc []byte, mappings []schema.Mapping, overrides map[string]any) (model.Row, error) {
	var nested map[string]any
	if err := jsonrs.Unmarshal(doc, &nested); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	flat, err := flatten.Flatten(nested, "", flatten.DotStyle)
	if err != nil {
		return nil, fmt.Errorf("flattening: %w", err)
	}
	for k, v := range overrides {
		flat[k] = v
	}

	row := make(model.Row, len(mappings)+1)
	for _, m := range mappings {
		row[m.Column] = flat[m.Source]
	}
	return row, nil
}

// mainGenre picks the shortest genre, the first one on ties.
func mainGenre(genres []string) any {
	if len(genres) == 0 {
		return nil
	}
	shortest := genres[0]
	for _, g := range genres[1:] {
		if len(g) < len(shortest) {
			shortest = g
		}
	}
	return shortest
}
