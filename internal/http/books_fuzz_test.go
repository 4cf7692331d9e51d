package httpserver

import "testing"

func FuzzParseBookPayload(f *testing.F) {
	seeds := []string{
		`{"title":"Dune","author":"Herbert","genre":"SciFi","year":1965}`,
		`{"_id":"x","_userId":"y"}`,
		`{"ratings":[{"userId":"u1","grade":5}]}`,
		`{broken`,
		"",
	}
	for _, seed := range seeds {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, raw []byte) {
		payload, err := parseBookPayload(raw)
		if err != nil {
			return
		}
		// A parsed payload must survive validation without panicking.
		_ = validateRequiredFields(payload)
		_, _ = buildUpdateParams(payload)
	})
}
