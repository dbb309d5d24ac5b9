package cli

import (
	"encoding/json"
	"io"
)

// Response is the JSON envelope for --format json.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

func output(opts *RootOptions, w io.Writer, data any, text func(io.Writer)) error {
	if opts.Format == "json" {
		return json.NewEncoder(w).Encode(Response{Status: "ok", Data: data})
	}
	text(w)
	return nil
}
