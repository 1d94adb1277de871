package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Character is one entry of the static purchasable-character catalog
type Character struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// CharacterCatalog holds the character catalog, loaded once at startup
type CharacterCatalog struct {
	characters []Character
	byID       map[string]Character
}

var characterCatalogInstance *CharacterCatalog

// LoadCharacterCatalog loads the catalog from a static JSON document.
// The source is either a local file path or an http(s) URL.
func LoadCharacterCatalog(source string) (*CharacterCatalog, error) {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := &http.Client{Timeout: 10 * time.Second}
		resp, getErr := client.Get(source)
		if getErr != nil {
			return nil, fmt.Errorf("failed to fetch characters: %w", getErr)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("characters endpoint returned status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read characters response: %w", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read characters file: %w", err)
		}
	}

	var characters []Character
	if err := json.Unmarshal(data, &characters); err != nil {
		return nil, fmt.Errorf("failed to parse characters: %w", err)
	}

	catalog := NewCharacterCatalog(characters)
	characterCatalogInstance = catalog
	return catalog, nil
}

// NewCharacterCatalog builds a catalog from an in-memory character list
func NewCharacterCatalog(characters []Character) *CharacterCatalog {
	byID := make(map[string]Character, len(characters))
	for _, c := range characters {
		byID[c.ID] = c
	}
	return &CharacterCatalog{characters: characters, byID: byID}
}

// GetCharacterCatalog returns the loaded catalog instance
func GetCharacterCatalog() *CharacterCatalog {
	return characterCatalogInstance
}

// SetCharacterCatalog sets the catalog instance (primarily for testing)
func SetCharacterCatalog(catalog *CharacterCatalog) {
	characterCatalogInstance = catalog
}

// Characters returns all catalog entries
func (c *CharacterCatalog) Characters() []Character {
	return c.characters
}

// ByID looks up a catalog entry by its id
func (c *CharacterCatalog) ByID(id string) (Character, bool) {
	character, ok := c.byID[id]
	return character, ok
}
