// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package models defines the wire types exchanged with plex.tv and with
// Plex Media Server, plus the internal shapes derived from them.
package models

import "encoding/xml"

// AuthPin is a plex.tv v2 authentication PIN. The provider creates it on
// request and fills AuthToken once the user authorizes the code out-of-band;
// it is read-only to PlExport.
type AuthPin struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
	AuthToken string `json:"authToken"`
}

// Authorized reports whether the PIN has been claimed by the user.
// A PIN with an auth token is terminal; further polling is harmless.
func (p *AuthPin) Authorized() bool {
	return p.AuthToken != ""
}

// Account is the plex.tv user account. The /users/account endpoint answers
// with structured markup; all fields are element attributes.
type Account struct {
	XMLName  xml.Name `xml:"user"`
	ID       string   `xml:"id,attr"`
	UUID     string   `xml:"uuid,attr"`
	Username string   `xml:"username,attr"`
	Title    string   `xml:"title,attr"`
	Email    string   `xml:"email,attr"`
	Thumb    string   `xml:"thumb,attr"`

	// Plex has shipped both attribute names for the account token.
	AuthenticationToken string `xml:"authenticationToken,attr"`
	AuthToken           string `xml:"authToken,attr"`
}

// Token returns the account auth token regardless of which attribute
// carried it.
func (a *Account) Token() string {
	if a.AuthenticationToken != "" {
		return a.AuthenticationToken
	}
	return a.AuthToken
}

// Resource is one entry of the plex.tv resource list. Only entries whose
// Provides contains "server" describe media servers.
type Resource struct {
	Name             string       `json:"name"`
	Provides         string       `json:"provides"`
	ClientIdentifier string       `json:"clientIdentifier"`
	ProductVersion   string       `json:"productVersion"`
	AccessToken      string       `json:"accessToken"`
	Connections      []Connection `json:"connections"`
}

// Connection is one reachable address of a resource.
type Connection struct {
	URI     string `json:"uri"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Local   bool   `json:"local"`
	Relay   bool   `json:"relay"`
}

// ServerDescriptor describes a reachable Plex Media Server, derived
// per-request from the resource list and never cached.
type ServerDescriptor struct {
	Name              string `json:"name"`
	Host              string `json:"host"`
	Address           string `json:"address"`
	Port              int    `json:"port"`
	MachineIdentifier string `json:"machineIdentifier"`
	Version           string `json:"version"`
	AccessToken       string `json:"accessToken"`
}

// LibrarySection is a top-level catalog grouping on a media server.
// Type is one of movie, show, artist, album, photo.
type LibrarySection struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Agent     string `json:"agent,omitempty"`
	Scanner   string `json:"scanner,omitempty"`
	Language  string `json:"language,omitempty"`
	UUID      string `json:"uuid,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// Collection is a named, ordered grouping of catalog items: a collection
// (scoped to one library section) or a playlist (global).
type Collection struct {
	RatingKey  string `json:"ratingKey"`
	Key        string `json:"key"`
	Title      string `json:"title"`
	Type       string `json:"type,omitempty"`
	Subtype    string `json:"subtype,omitempty"`
	Summary    string `json:"summary,omitempty"`
	ChildCount int    `json:"childCount,omitempty"`

	// Playlists report their size as leafCount.
	LeafCount int   `json:"leafCount,omitempty"`
	AddedAt   int64 `json:"addedAt,omitempty"`
}

// Tag is a multi-valued metadata entry (genre, director, cast member).
type Tag struct {
	Tag string `json:"tag"`
}

// MediaItem is one catalog item: movie, show, artist or album. Plex serves
// all four kinds through the same MediaContainer envelope, so a single
// struct with a type discriminator and optional per-kind fields mirrors the
// wire format; kind-specific handling dispatches on the caller-supplied
// library type, never on which optional fields happen to be set.
type MediaItem struct {
	RatingKey string `json:"ratingKey"`
	Key       string `json:"key,omitempty"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	AddedAt   int64  `json:"addedAt,omitempty"`

	// Movie and show fields.
	Studio        string  `json:"studio,omitempty"`
	ContentRating string  `json:"contentRating,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	Summary       string  `json:"summary,omitempty"`
	Duration      int64   `json:"duration,omitempty"`

	// Show counters: seasons (ChildCount) and episodes (LeafCount).
	ChildCount int `json:"childCount,omitempty"`
	LeafCount  int `json:"leafCount,omitempty"`

	// Album parent artist.
	ParentTitle string `json:"parentTitle,omitempty"`

	Genre    []Tag `json:"Genre,omitempty"`
	Director []Tag `json:"Director,omitempty"`
	Role     []Tag `json:"Role,omitempty"`
	Country  []Tag `json:"Country,omitempty"`
}

// SectionsContainer is the MediaContainer payload of /library/sections.
type SectionsContainer struct {
	Size      int              `json:"size"`
	Directory []LibrarySection `json:"Directory"`
}

// SectionsResponse is the envelope of /library/sections.
type SectionsResponse struct {
	MediaContainer SectionsContainer `json:"MediaContainer"`
}

// ItemsContainer is the MediaContainer payload of catalog item listings.
type ItemsContainer struct {
	Size     int         `json:"size"`
	Metadata []MediaItem `json:"Metadata"`
}

// ItemsResponse is the envelope of catalog item listings.
type ItemsResponse struct {
	MediaContainer ItemsContainer `json:"MediaContainer"`
}

// CollectionsContainer is the MediaContainer payload of collection and
// playlist listings.
type CollectionsContainer struct {
	Size     int          `json:"size"`
	Metadata []Collection `json:"Metadata"`
}

// CollectionsResponse is the envelope of collection and playlist listings.
type CollectionsResponse struct {
	MediaContainer CollectionsContainer `json:"MediaContainer"`
}
