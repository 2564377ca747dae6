package generation

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrNoRecordFound is returned when no well-formed JSON record of the
// requested shape can be located in the provider text. Callers treat it
// as a degradation signal, not a failure: they substitute a sentinel
// record appropriate to the call site instead of failing the pipeline.
var ErrNoRecordFound = errors.New("no JSON record found in response text")

// ExtractObject locates the first well-formed JSON object embedded in
// free-form provider text and decodes it into v. Surrounding commentary
// ("Sure! Here is the result: {...} Thanks") is tolerated.
func ExtractObject(text string, v any) error {
	return extractRecord(text, '{', v)
}

// ExtractArray locates the first well-formed JSON array embedded in
// free-form provider text and decodes it into v.
func ExtractArray(text string, v any) error {
	return extractRecord(text, '[', v)
}

// extractRecord scans for each candidate opening delimiter and attempts
// to decode exactly one JSON value starting there. The first candidate
// that parses wins; trailing text after the value is ignored.
func extractRecord(text string, open byte, v any) error {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}

		if err := json.Unmarshal(raw, v); err != nil {
			// Well-formed JSON but the wrong shape for v; keep scanning
			// in case a later record matches.
			continue
		}

		return nil
	}

	return ErrNoRecordFound
}

// TruncateSummary clips raw provider text to at most max bytes for use
// as a degraded notes summary when no structured record could be
// parsed. The cut never splits a multi-byte rune.
func TruncateSummary(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
