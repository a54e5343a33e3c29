package auth

import (
	"bytes"
	"encoding/json"
)

// PIN is a request field that clients send either as a JSON string or a
// bare number.
type PIN string

// UnmarshalJSON accepts "1234" and 1234 alike.
func (p *PIN) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PIN(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PIN(n.String())
	return nil
}

func (p PIN) String() string { return string(p) }
