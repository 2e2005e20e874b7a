package tokenstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expiryDelta mirrors the early-expiry window used by oauth2 token sources.
const expiryDelta = 10 * time.Second

// Record is the stored OAuth state for one account, in the authorized-user
// JSON shape written by Google client libraries.
type Record struct {
	Token          string     `json:"token"`
	RefreshToken   string     `json:"refresh_token"`
	TokenURI       string     `json:"token_uri,omitempty"`
	ClientID       string     `json:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`
	Expiry         *time.Time `json:"expiry,omitempty"`
	UniverseDomain string     `json:"universe_domain,omitempty"`
	Account        string     `json:"account,omitempty"`

	// extra keeps fields this package does not model so a rewrite does not drop them.
	extra map[string]json.RawMessage
}

type recordFields Record

var knownRecordFields = map[string]bool{
	"token":           true,
	"refresh_token":   true,
	"token_uri":       true,
	"client_id":       true,
	"client_secret":   true,
	"scopes":          true,
	"expiry":          true,
	"universe_domain": true,
	"account":         true,
}

// UnmarshalJSON decodes a record and remembers unknown fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownRecordFields[k] {
			delete(raw, k)
		}
	}

	*r = Record(fields)
	if len(raw) > 0 {
		r.extra = raw
	}
	return nil
}

// MarshalJSON encodes the record including any preserved unknown fields.
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(recordFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(r.extra)+len(knownRecordFields))
	for k, v := range r.extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Expired reports whether the access token is past its expiry at now.
// A record without an expiry never expires on its own.
func (r Record) Expired(now time.Time) bool {
	if r.Expiry == nil || r.Expiry.IsZero() {
		return false
	}
	return !now.Before(r.Expiry.Add(-expiryDelta))
}

// Valid reports whether the record carries a usable, unexpired access token.
func (r Record) Valid(now time.Time) bool {
	return r.Token != "" && !r.Expired(now)
}

// OAuth2Token converts the record into an oauth2 token.
func (r Record) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.Token,
		TokenType:    "Bearer",
		RefreshToken: r.RefreshToken,
	}
	if r.Expiry != nil {
		tok.Expiry = *r.Expiry
	}
	return tok
}

// RecordFromToken builds a record from a freshly issued token, carrying the
// client metadata of base. An empty refresh token in tok keeps the one in base,
// since refresh responses usually omit it.
func RecordFromToken(tok *oauth2.Token, base Record) Record {
	rec := base
	rec.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}
	if tok.Expiry.IsZero() {
		rec.Expiry = nil
	} else {
		expiry := tok.Expiry.UTC()
		rec.Expiry = &expiry
	}
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		rec.Scopes = strings.Fields(s)
	}
	return rec
}

// String hides secrets.
func (r Record) String() string {
	return fmt.Sprintf("Record{client_id=%q, scopes=%d, has_refresh=%t}", r.ClientID, len(r.Scopes), r.RefreshToken != "")
}
