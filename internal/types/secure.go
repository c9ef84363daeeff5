package types

import "log/slog"

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values such as database connection strings.
// fmt, JSON encoding, and slog all see the redacted placeholder; call
// Unmask() where the plaintext is genuinely required.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue implements slog.LogValuer so structured log output is redacted
// even when the secret is passed as a raw attribute value.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value. Limit usage to the points where
// the secret actually leaves the process (driver connect, auth headers).
func (s SecretString) Unmask() string {
	return string(s)
}
