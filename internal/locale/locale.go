// Package locale keeps the UI language preference and resolves translation
// keys for it.
package locale

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/language"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/repository"
)

// Default is used when nothing valid is stored.
const Default = "en"

var supported = []language.Tag{language.English, language.Czech}

var matcher = language.NewMatcher(supported)

// Normalize maps any tag the user types (cs-CZ, EN) to a supported base code.
func Normalize(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q", errs.ErrUnsupportedLanguage, code)
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return "", fmt.Errorf("%w: %q", errs.ErrUnsupportedLanguage, code)
	}
	b, _ := supported[idx].Base()
	return b.String(), nil
}

// Supported lists the language codes that have a dictionary.
func Supported() []string {
	out := make([]string, 0, len(supported))
	for _, t := range supported {
		b, _ := t.Base()
		out = append(out, b.String())
	}
	return out
}

// Preference is the persisted language choice. It is not a session entry
// and survives logout.
type Preference struct {
	kv  repository.KV
	def string
}

// NewPreference returns a Preference over kv. An unsupported def falls back
// to Default.
func NewPreference(kv repository.KV, def string) *Preference {
	if n, err := Normalize(def); err == nil {
		def = n
	} else {
		def = Default
	}
	return &Preference{kv: kv, def: def}
}

// Get returns the stored language, or the default when absent or invalid.
func (p *Preference) Get(ctx context.Context) (string, error) {
	v, err := p.kv.Get(ctx, model.KeyLanguage)
	if errors.Is(err, errs.ErrNotFound) {
		return p.def, nil
	}
	if err != nil {
		return p.def, err
	}
	if n, err := Normalize(v); err == nil {
		return n, nil
	}
	return p.def, nil
}

// Set validates and stores code, returning the normalized form.
func (p *Preference) Set(ctx context.Context, code string) (string, error) {
	n, err := Normalize(code)
	if err != nil {
		return "", err
	}
	if err := p.kv.Set(ctx, model.KeyLanguage, n); err != nil {
		return "", fmt.Errorf("store language: %w", err)
	}
	return n, nil
}

//go:embed dict/*.json
var dicts embed.FS

// Translator resolves dotted keys such as "common.logout".
type Translator struct {
	entries map[string]map[string]string
}

// NewTranslator loads the embedded dictionaries.
func NewTranslator() (*Translator, error) {
	files, err := dicts.ReadDir("dict")
	if err != nil {
		return nil, err
	}
	t := &Translator{entries: map[string]map[string]string{}}
	for _, f := range files {
		b, err := dicts.ReadFile(path.Join("dict", f.Name()))
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal(b, &tree); err != nil {
			return nil, fmt.Errorf("dictionary %s: %w", f.Name(), err)
		}
		flat := map[string]string{}
		flatten("", tree, flat)
		t.entries[strings.TrimSuffix(f.Name(), ".json")] = flat
	}
	return t, nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case string:
			out[key] = v
		case map[string]any:
			flatten(key, v, out)
		}
	}
}

// T returns the translation of key in lang, or key itself when either is
// unknown.
func (t *Translator) T(lang, key string) string {
	if v, ok := t.entries[lang][key]; ok {
		return v
	}
	return key
}
