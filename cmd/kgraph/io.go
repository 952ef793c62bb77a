package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/siherrmann/kgraph/helper"
)

// readBatch decodes a JSON array from path, or from in when path is "-".
func readBatch[T any](path string, in io.Reader) ([]T, error) {
	r := in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, helper.NewError("open batch", err)
		}
		defer f.Close()
		r = f
	}

	var items []T
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, helper.NewError("decode batch", fmt.Errorf("%w: %v", helper.ErrInvalidInput, err))
	}
	return items, nil
}

// writeJSON writes value as indented JSON.
func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return helper.NewError("encode result", err)
	}
	return nil
}
