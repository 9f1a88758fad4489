package types

// redacted replaces secret values whenever they would be stringified or
// serialized.
const redacted = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive value (API key, bot token, session secret)
// and refuses to leak it through fmt or JSON. Call Unmask only at the point
// where the plaintext is genuinely needed, e.g. when setting the Api-Key
// request header.
type SecretString string

// String implements fmt.Stringer with a redacted placeholder.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON serializes the redacted placeholder, never the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// IsRedacted reports whether the value is the redaction placeholder itself,
// as happens when a client echoes a previously serialized secret back.
func (s SecretString) IsRedacted() bool {
	return string(s) == redacted
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsZero reports whether the secret is unset.
func (s SecretString) IsZero() bool {
	return s == ""
}
