package snippets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tailscale/hujson"
)

// snippetFileExt is the extension snippet files carry regardless of flags.
const snippetFileExt = ".code-snippets"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader reads every snippet file under a folder and groups the parsed
// snippets by target language.
type Loader interface {
	// LoadFolder walks dir recursively in lexical order and parses every
	// eligible file. Malformed files are recorded as warnings and skipped,
	// they never fail the load. The returned error covers folder-level
	// failures only.
	LoadFolder(ctx context.Context, dir string, opts LoadOptions) (*Result, error)
}

// LoadOptions controls a single folder load.
type LoadOptions struct {
	// SourceID is stamped on every loaded snippet
	SourceID string

	// IncludeJSONFiles also admits plain *.json files next to
	// *.code-snippets ones
	IncludeJSONFiles bool
}

// Buckets groups snippets by target language key. A snippet with several
// target languages appears in each of its buckets as the same pointer.
type Buckets map[string][]*Snippet

func (b Buckets) add(s *Snippet) {
	for _, lang := range s.TargetLanguages {
		b[lang] = append(b[lang], s)
	}
}

// Total returns the number of bucket entries. A snippet targeting several
// languages counts once per language.
func (b Buckets) Total() int {
	n := 0
	for _, bucket := range b {
		n += len(bucket)
	}
	return n
}

// Warning describes one skipped snippet file.
type Warning struct {
	// File is the path relative to the snippets folder
	File string `json:"file"`

	// Err is the parse or validation failure
	Err error `json:"-"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.File, w.Err)
}

// Result is the outcome of one folder load.
type Result struct {
	// Buckets holds the loaded snippets grouped by language
	Buckets Buckets

	// Count is the number of distinct snippets loaded
	Count int

	// Files is the number of files that parsed successfully
	Files int

	// Warnings lists the files that were skipped and why
	Warnings []Warning
}

func (r *Result) warn(file string, err error) {
	r.Warnings = append(r.Warnings, Warning{File: file, Err: err})
}

type defaultLoader struct {
	schema *jsonschema.Schema
}

var _ Loader = (*defaultLoader)(nil)

// NewDefaultLoader creates a Loader backed by the embedded file schema.
func NewDefaultLoader() (Loader, error) {
	schema, err := compileFileSchema()
	if err != nil {
		return nil, err
	}
	return &defaultLoader{schema: schema}, nil
}

// LoadFolder implements Loader.
func (l *defaultLoader) LoadFolder(ctx context.Context, dir string, opts LoadOptions) (*Result, error) {
	res := &Result{Buckets: Buckets{}}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !eligibleFile(d.Name(), opts.IncludeJSONFiles) {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = d.Name()
		}
		l.loadFile(ctx, path, filepath.ToSlash(rel), opts, res)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to scan snippets folder %s: %w", dir, walkErr)
	}

	return res, nil
}

// eligibleFile reports whether a file name qualifies for loading.
func eligibleFile(name string, includeJSON bool) bool {
	if strings.HasSuffix(name, snippetFileExt) {
		return true
	}
	return includeJSON && strings.HasSuffix(name, ".json")
}

// loadFile parses one file into res. Failures are recorded as warnings,
// empty files are skipped without one.
func (l *defaultLoader) loadFile(ctx context.Context, path, rel string, opts LoadOptions, res *Result) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.skip(ctx, res, rel, fmt.Errorf("failed to read file: %w", err))
		return
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		slog.DebugContext(ctx, "Skipping empty snippet file", "file", rel)
		return
	}

	// Snippet files are JSONC: comments and trailing commas are legal.
	std, err := hujson.Standardize(data)
	if err != nil {
		l.skip(ctx, res, rel, fmt.Errorf("invalid JSONC syntax: %w", err))
		return
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(std))
	if err != nil {
		l.skip(ctx, res, rel, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if err := l.schema.Validate(doc); err != nil {
		l.skip(ctx, res, rel, fmt.Errorf("unexpected file shape: %w", err))
		return
	}

	entries, err := decodeEntries(std)
	if err != nil {
		l.skip(ctx, res, rel, fmt.Errorf("failed to decode entries: %w", err))
		return
	}

	res.Files++
	for _, fe := range entries {
		s := newSnippet(fe.name, fe.entry)
		s.Source = opts.SourceID
		s.File = rel
		res.Buckets.add(s)
		res.Count++
	}
}

func (l *defaultLoader) skip(ctx context.Context, res *Result, file string, err error) {
	slog.WarnContext(ctx, "Skipping snippet file", "file", file, "error", err)
	res.warn(file, err)
}

type fileEntry struct {
	name  string
	entry rawEntry
}

// decodeEntries streams the top-level object so that file order is kept
// and duplicate names stay separate entries.
func decodeEntries(data []byte) ([]fileEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a top-level object, got %v", tok)
	}

	var entries []fileEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an entry name, got %v", keyTok)
		}

		var e rawEntry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("entry %q: %w", name, err)
		}
		entries = append(entries, fileEntry{name: name, entry: e})
	}

	return entries, nil
}
