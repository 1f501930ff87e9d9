// Package avatar resolves the profile picture shown on the dashboard.
package avatar

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jon4hz/botconsole/internal/config"
)

// URL returns the avatar of a user. The platform avatar wins; otherwise a generated
// Gravatar image keyed by the username is returned. Returns an empty string if neither is available.
func URL(platformAvatar, username string, cfg *config.GravatarConfig) string {
	if platformAvatar = strings.TrimSpace(platformAvatar); platformAvatar != "" {
		return platformAvatar
	}
	return GenerateURL(username, cfg)
}

// GenerateURL generates a Gravatar URL for the given identifier using the provided configuration.
// Returns an empty string if Gravatar is disabled or the identifier is empty.
func GenerateURL(identifier string, cfg *config.GravatarConfig) string {
	if cfg == nil || !cfg.Enabled {
		return ""
	}
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(identifier))
	baseURL := fmt.Sprintf("https://www.gravatar.com/avatar/%x", hash)

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Add("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Add("r", cfg.Rating)
	}
	if cfg.Size > 0 {
		params.Add("s", strconv.Itoa(cfg.Size))
	}

	if len(params) > 0 {
		baseURL = baseURL + "?" + params.Encode()
	}
	return baseURL
}

// IsValidDefaultImage checks if the provided default image value is valid for Gravatar.
func IsValidDefaultImage(defaultImage string) bool {
	switch defaultImage {
	case "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank":
		return true
	}
	return false
}

// IsValidRating checks if the provided rating value is valid for Gravatar.
func IsValidRating(rating string) bool {
	switch rating {
	case "g", "pg", "r", "x":
		return true
	}
	return false
}

// IsValidSize checks if the provided size value is valid for Gravatar (1-2048 pixels).
func IsValidSize(size int) bool {
	return size >= 1 && size <= 2048
}

// Validate checks the Gravatar options of an enabled configuration.
func Validate(cfg *config.GravatarConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.DefaultImage != "" && !IsValidDefaultImage(cfg.DefaultImage) {
		return fmt.Errorf("invalid gravatar default image %q", cfg.DefaultImage)
	}
	if cfg.Rating != "" && !IsValidRating(cfg.Rating) {
		return fmt.Errorf("invalid gravatar rating %q", cfg.Rating)
	}
	if cfg.Size != 0 && !IsValidSize(cfg.Size) {
		return fmt.Errorf("invalid gravatar size %d", cfg.Size)
	}
	return nil
}
