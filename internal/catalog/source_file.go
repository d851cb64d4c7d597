package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"recipebook/ingredientservice/internal/domain"
)

const maxCatalogFileBytes = 64 << 20

var ErrMalformedCatalog = errors.New("catalog is not a sequence of records")

// FileSource reads the catalog from a JSON array or a YAML list on disk.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: strings.TrimSpace(path)}
}

func (f *FileSource) Name() string {
	return normalizeSourceName("file", f.Path)
}

func (f *FileSource) Load(ctx context.Context) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog file: %w", err)
	}
	if info.Size() > maxCatalogFileBytes {
		return nil, fmt.Errorf("catalog file %s is too large (%d bytes)", f.Path, info.Size())
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeJSON(data)
	}
}

// DecodeJSON splits a JSON array into records, decoding each one separately so
// a single bad entry does not reject the whole catalog.
func DecodeJSON(data []byte) ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformedCatalog
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	return decodeRawItems(items), nil
}

// DecodeYAML accepts a YAML list using the same field names as the JSON form.
func DecodeYAML(data []byte) ([]RawRecord, error) {
	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	if items == nil {
		return nil, ErrMalformedCatalog
	}
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			// yaml.v3 may yield values json cannot encode; keep the slot so the
			// record index stays aligned and report it as undecodable.
			raw = append(raw, nil)
			continue
		}
		raw = append(raw, encoded)
	}
	return decodeRawItems(raw), nil
}

func decodeRawItems(items []json.RawMessage) []RawRecord {
	out := make([]RawRecord, 0, len(items))
	for index, item := range items {
		out = append(out, decodeRecord(index, item))
	}
	return out
}

func decodeRecord(index int, data []byte) RawRecord {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return RawRecord{Index: index, DecodeErr: errors.New("record is not an object")}
	}
	var ingredient domain.Ingredient
	if err := json.Unmarshal(trimmed, &ingredient); err != nil {
		return RawRecord{Index: index, DecodeErr: fmt.Errorf("decode record: %w", err)}
	}
	return RawRecord{Index: index, Ingredient: ingredient}
}
