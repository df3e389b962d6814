package iris

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Top-level fields that OpenAI-compatible backends have been seen using to
// carry the reply text directly.
var textFields = []string{"text", "content", "response", "message", "message.content"}

// ExtractText normalizes a model response into plain text. Serving backends
// are not uniform in response shape across model families, so the accepted
// shapes are tried in priority order:
//
//  1. a bare JSON string
//  2. a single top-level text-like field
//  3. choices[0].message.content, itself either a string or a list of
//     content blocks whose text is concatenated in order
//  4. a last-resort stringification with structural wrappers stripped
//
// Anything else fails with *UnparseableResponseError carrying the payload.
// No semantic validation of the text is performed.
func ExtractText(raw json.RawMessage) (string, error) {
	if !gjson.ValidBytes(raw) {
		// Plain text body from a non-conforming backend.
		return scrape(raw)
	}

	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		return v.String(), nil
	}

	if v.IsObject() {
		for _, field := range textFields {
			if f := v.Get(field); f.Type == gjson.String {
				return f.String(), nil
			}
		}

		if c := v.Get("choices.0.message.content"); c.Exists() {
			if c.Type == gjson.String {
				return c.String(), nil
			}
			if c.IsArray() {
				var sb strings.Builder
				for _, part := range c.Array() {
					if part.Type == gjson.String {
						sb.WriteString(part.String())
						continue
					}
					if part.Get("type").String() == "text" {
						sb.WriteString(part.Get("text").String())
					}
				}
				if sb.Len() > 0 {
					return sb.String(), nil
				}
			}
		}
	}

	return scrape(raw)
}

// scrape strips obvious structural wrapper characters and accepts whatever
// remains, unless the result is empty or still looks like a serialized
// object.
func scrape(raw []byte) (string, error) {
	s := strings.Trim(string(raw), " \t\r\n{}[]\"")
	if s == "" || strings.ContainsAny(s, "{}") || strings.Contains(s, `":`) {
		return "", &UnparseableResponseError{Raw: raw}
	}
	return s, nil
}
