package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Reps is a prescribed repetition target. Coaches write it as a number
// ("10"), a range ("10-12") or free text ("até a falha"), and the data
// service may send either a JSON string or a JSON number.
type Reps string

func (r *Reps) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding reps: %w", err)
		}
		*r = Reps(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding reps: %w", err)
	}
	*r = Reps(n.String())
	return nil
}

// RepsOf formats an integer target.
func RepsOf(n int) Reps { return Reps(strconv.Itoa(n)) }
