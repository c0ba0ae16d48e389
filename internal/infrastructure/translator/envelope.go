package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

const (
	ErrEnvelopeNotFound   = errors.ConstError("envelope delimiters not found")
	ErrEnvelopeMissingSQL = errors.ConstError("envelope has no sql field")

	functionStartMarker = "@@"
	functionEndMarker   = "##"
)

type envelope struct {
	SQL    *string         `json:"sql"`
	IsFunc json.RawMessage `json:"is_func,omitempty"`
}

// ExtractJSONEnvelope parses the span from the first '{' to the last '}' of a
// free-form response and returns its sql field.
func ExtractJSONEnvelope(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: %w", domain.ErrTranslationParse, ErrEnvelopeNotFound)
	}
	env, err := decodeEnvelope(raw[start : end+1])
	if err != nil {
		return "", err
	}
	return *env.SQL, nil
}

// ExtractMarkerEnvelope handles the function response convention: the JSON
// members sit between "@@" and "##" without surrounding braces.
func ExtractMarkerEnvelope(raw string) (string, error) {
	start := strings.Index(raw, functionStartMarker)
	end := strings.LastIndex(raw, functionEndMarker)
	if start < 0 || end < start+len(functionStartMarker) {
		return "", fmt.Errorf("%w: %w", domain.ErrTranslationParse, ErrEnvelopeNotFound)
	}
	env, err := decodeEnvelope("{" + raw[start+len(functionStartMarker):end] + "}")
	if err != nil {
		return "", err
	}
	if len(env.IsFunc) > 0 {
		logger.Debugf("function envelope is_func=%s", env.IsFunc)
	}
	return *env.SQL, nil
}

func decodeEnvelope(text string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return envelope{}, fmt.Errorf("%w: decode envelope: %v", domain.ErrTranslationParse, err)
	}
	if env.SQL == nil || strings.TrimSpace(*env.SQL) == "" {
		return envelope{}, fmt.Errorf("%w: %w", domain.ErrTranslationParse, ErrEnvelopeMissingSQL)
	}
	return env, nil
}
