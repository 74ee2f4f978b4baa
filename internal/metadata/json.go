package metadata

import (
	"encoding/json"

	"github.com/starford/bhc/internal/apperr"
	"github.com/starford/bhc/internal/storage"
)

func readJSON(store storage.Provider, path string, v any) error {
	data, err := store.Read(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &apperr.ParseError{Path: path, Detail: "decode metadata", Err: err}
	}
	return nil
}

func writeJSON(store storage.Provider, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &apperr.ParseError{Path: path, Detail: "encode metadata", Err: err}
	}
	return store.Write(path, append(data, '\n'))
}
