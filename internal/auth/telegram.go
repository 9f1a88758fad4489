// Package auth verifies operator identity. Two paths are supported: the
// Telegram Login Widget (HMAC-signed payloads) and a static admin token.
// Both produce short-lived in-memory sessions consumed as bearer tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"sellerpilot/internal/types"
)

// maxAuthAge is how long a Telegram login payload stays acceptable. Older
// payloads are rejected to limit replay.
const maxAuthAge = 24 * time.Hour

// TelegramAuthData is the payload posted by the Telegram Login Widget.
type TelegramAuthData struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// Verifier validates Telegram Login Widget payloads against the bot token,
// as documented at https://core.telegram.org/widgets/login: the HMAC key is
// SHA256(bot token) and the message is the sorted key=value lines of all
// fields except hash.
type Verifier struct {
	secretKey []byte
	now       func() time.Time
}

// NewVerifier builds a Verifier for the given bot token.
func NewVerifier(botToken types.SecretString) *Verifier {
	key := sha256.Sum256([]byte(botToken.Unmask()))
	return &Verifier{secretKey: key[:], now: time.Now}
}

// Verify checks the payload's required fields, freshness and signature.
func (v *Verifier) Verify(data TelegramAuthData) error {
	if data.ID <= 0 || data.FirstName == "" || data.AuthDate <= 0 || data.Hash == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "telegram auth payload is missing required fields", nil)
	}

	age := v.now().Unix() - data.AuthDate
	if age > int64(maxAuthAge.Seconds()) {
		return types.NewAppError(types.ErrCodeAuthStale, "telegram auth data is older than 24 hours", nil)
	}

	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(checkString(data)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(data.Hash)) {
		return types.NewAppError(types.ErrCodeAuthHashMismatch, "telegram auth hash does not match", nil)
	}
	return nil
}

// checkString builds the data-check-string: every present field except hash,
// as key=value, sorted by key, joined with newlines.
func checkString(data TelegramAuthData) string {
	fields := map[string]string{
		"id":         strconv.FormatInt(data.ID, 10),
		"first_name": data.FirstName,
		"auth_date":  strconv.FormatInt(data.AuthDate, 10),
	}
	if data.LastName != "" {
		fields["last_name"] = data.LastName
	}
	if data.Username != "" {
		fields["username"] = data.Username
	}
	if data.PhotoURL != "" {
		fields["photo_url"] = data.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	return strings.Join(lines, "\n")
}

// SignFor computes the widget hash for a payload. Exposed for tests and the
// local development login helper.
func (v *Verifier) SignFor(data TelegramAuthData) string {
	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(checkString(data)))
	return hex.EncodeToString(mac.Sum(nil))
}
