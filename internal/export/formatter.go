// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package export projects heterogeneous catalog items into flat,
// export-ready records and serializes them as CSV or JSON.
//
// Formatting is a pure function of the items and the caller-supplied
// library type: per-type field sets per the projection table, tag lists
// comma-joined, cast capped at five entries, durations floored to whole
// minutes, timestamps converted from epoch seconds to RFC 3339.
package export

import (
	"time"

	"github.com/plexport/plexport/internal/models"
)

// maxActors caps the exported cast list, preserving provider order.
const maxActors = 5

// baseColumns are present for every library type, in this order.
var baseColumns = []string{"title", "year", "addedAt", "ratingKey"}

// extraColumns lists the per-type field projections. An unknown library
// type projects base fields only; never an error.
var extraColumns = map[string][]string{
	"movie":  {"studio", "contentRating", "rating", "duration", "summary", "genres", "directors", "actors"},
	"show":   {"studio", "contentRating", "rating", "seasons", "episodes", "summary", "genres"},
	"artist": {"summary", "genres", "country"},
	"album":  {"artist", "studio", "rating", "genres"},
}

// Record is one flattened export row. Column order is stable per library
// type so CSV headers and JSON key order stay deterministic.
type Record struct {
	columns []string
	values  map[string]interface{}
}

// Columns returns the record's column names in projection order.
func (r Record) Columns() []string {
	return r.columns
}

// Value returns the value for a column: a string, an int, a float64, or
// "" when the source field was absent.
func (r Record) Value(column string) interface{} {
	if v, ok := r.values[column]; ok {
		return v
	}
	return ""
}

// Columns returns the projected column order for a library type.
func Columns(libraryType string) []string {
	cols := make([]string, 0, len(baseColumns)+len(extraColumns[libraryType]))
	cols = append(cols, baseColumns...)
	cols = append(cols, extraColumns[libraryType]...)
	return cols
}

// Format projects catalog items into export records for a library type.
func Format(items []models.MediaItem, libraryType string) []Record {
	cols := Columns(libraryType)
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, formatItem(&item, libraryType, cols))
	}
	return records
}

func formatItem(item *models.MediaItem, libraryType string, cols []string) Record {
	vals := map[string]interface{}{
		"title":     item.Title,
		"year":      intOrEmpty(item.Year),
		"addedAt":   isoTime(item.AddedAt),
		"ratingKey": item.RatingKey,
	}

	switch libraryType {
	case "movie":
		vals["studio"] = item.Studio
		vals["contentRating"] = item.ContentRating
		vals["rating"] = floatOrEmpty(item.Rating)
		vals["duration"] = minutesOrEmpty(item.Duration)
		vals["summary"] = item.Summary
		vals["genres"] = joinTags(item.Genre, 0)
		vals["directors"] = joinTags(item.Director, 0)
		vals["actors"] = joinTags(item.Role, maxActors)
	case "show":
		vals["studio"] = item.Studio
		vals["contentRating"] = item.ContentRating
		vals["rating"] = floatOrEmpty(item.Rating)
		vals["seasons"] = intOrEmpty(item.ChildCount)
		vals["episodes"] = intOrEmpty(item.LeafCount)
		vals["summary"] = item.Summary
		vals["genres"] = joinTags(item.Genre, 0)
	case "artist":
		vals["summary"] = item.Summary
		vals["genres"] = joinTags(item.Genre, 0)
		vals["country"] = joinTags(item.Country, 0)
	case "album":
		vals["artist"] = item.ParentTitle
		vals["studio"] = item.Studio
		vals["rating"] = floatOrEmpty(item.Rating)
		vals["genres"] = joinTags(item.Genre, 0)
	}

	return Record{columns: cols, values: vals}
}

// joinTags flattens a tag list to a comma-joined string, keeping provider
// order. limit > 0 caps the number of entries.
func joinTags(tags []models.Tag, limit int) string {
	if limit <= 0 || limit > len(tags) {
		limit = len(tags)
	}
	out := ""
	for i := 0; i < limit; i++ {
		if i > 0 {
			out += ", "
		}
		out += tags[i].Tag
	}
	return out
}

// isoTime converts epoch seconds to RFC 3339 UTC, or "" when absent.
func isoTime(epoch int64) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}

// minutesOrEmpty converts milliseconds to whole minutes, floor-rounded.
func minutesOrEmpty(ms int64) interface{} {
	if ms == 0 {
		return ""
	}
	return int(ms / 60000)
}

func intOrEmpty(v int) interface{} {
	if v == 0 {
		return ""
	}
	return v
}

func floatOrEmpty(v float64) interface{} {
	if v == 0 {
		return ""
	}
	return v
}
