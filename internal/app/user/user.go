/*
Package user contains the credential records of chat users and the store that owns them.

It defines the fixed-shape Credential record, its JSON codec shared by every
persistence backend, and the Store that keeps all credentials in memory,
answers case-insensitive lookups and persists new registrations.
*/
package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Credential is the persisted identity of a chat user.
// JSON field names match the users.json files written by earlier server versions.
type Credential struct {
	// Username is unique across the store, compared case-insensitively.
	Username string `json:"Username"`

	// Password is the plaintext password, or its bcrypt hash when hashing is enabled.
	Password string `json:"Password"`
}

// SameUsername reports whether name refers to this credential.
// The comparison trims name and ignores case.
func (c Credential) SameUsername(name string) bool {
	return strings.EqualFold(c.Username, strings.TrimSpace(name))
}

// DecodeCredentials parses a JSON array of credentials.
// Unknown fields, trailing data and records without a username are rejected.
// Empty input decodes to an empty list.
func DecodeCredentials(r io.Reader) ([]Credential, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Credential{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var creds []Credential
	if err := decoder.Decode(&creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("decode credentials: unexpected data after the credential list")
	}
	if creds == nil {
		return nil, fmt.Errorf("decode credentials: expected a JSON array, got null")
	}

	for i, c := range creds {
		if strings.TrimSpace(c.Username) == "" {
			return nil, fmt.Errorf("decode credentials: record %d has an empty username", i)
		}
	}

	return creds, nil
}

// EncodeCredentials renders creds as an indented JSON array.
func EncodeCredentials(creds []Credential) ([]byte, error) {
	if creds == nil {
		creds = []Credential{}
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	return append(data, '\n'), nil
}
