package xtream

import (
	"encoding/json"
	"strconv"
)

// FlexInt unmarshals from a JSON number, a numeric string, or
// null/empty. Xtream panels disagree about which one they emit.
type FlexInt int

// UnmarshalJSON implements the json.Unmarshaler interface.
func (fi *FlexInt) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" || string(b) == `""` {
		*fi = 0
		return nil
	}

	var i int
	if err := json.Unmarshal(b, &i); err == nil {
		*fi = FlexInt(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	if s == "" {
		*fi = 0
		return nil
	}

	i, err := strconv.Atoi(s)
	if err != nil {
		return err
	}

	*fi = FlexInt(i)
	return nil
}

func (fi FlexInt) String() string {
	return strconv.Itoa(int(fi))
}
