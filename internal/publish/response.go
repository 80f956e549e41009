package publish

import (
	"bytes"
	"errors"

	"github.com/tidwall/gjson"
)

var errNoContentID = errors.New("gateway response carries no content id")

// Providers disagree on field names; the first path that yields a value wins.
var (
	cidPaths  = []string{"Hash", "cid", "Cid", "IpfsHash", "data.cid", "data.Hash", "data.hash", "value.cid"}
	sizePaths = []string{"Size", "size", "PinSize", "data.size", "data.Size", "value.size"}
)

// parseResponse extracts the content id and size from a gateway answer.
// Streaming gateways reply with one JSON object per line; the last one
// describes the uploaded file.
func parseResponse(raw []byte) (string, int64, error) {
	doc := lastDocument(raw)
	if !gjson.ValidBytes(doc) {
		return "", 0, errors.New("gateway response is not JSON")
	}

	var cid string
	for _, p := range cidPaths {
		r := gjson.GetBytes(doc, p)
		if r.IsObject() {
			r = r.Get("/")
		}
		if r.Type == gjson.String && r.Str != "" {
			cid = r.Str
			break
		}
	}
	if cid == "" {
		return "", 0, errNoContentID
	}

	var size int64
	for _, p := range sizePaths {
		if r := gjson.GetBytes(doc, p); r.Exists() {
			size = r.Int()
			break
		}
	}
	return cid, size, nil
}

func lastDocument(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if gjson.ValidBytes(raw) {
		return raw
	}
	lines := bytes.Split(raw, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if line := bytes.TrimSpace(lines[i]); len(line) > 0 {
			return line
		}
	}
	return raw
}
