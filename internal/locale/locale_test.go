package locale

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/repository/memory"
)

func TestNormalize(t *testing.T) {
	for in, want := range map[string]string{"en": "en", "EN": "en", "cs": "cs", "cs-CZ": "cs", " en-GB ": "en"} {
		got, err := Normalize(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "de", "??"} {
		if _, err := Normalize(bad); !errors.Is(err, errs.ErrUnsupportedLanguage) {
			t.Fatalf("Normalize(%q): want ErrUnsupportedLanguage, got %v", bad, err)
		}
	}
	require.Equal(t, []string{"en", "cs"}, Supported())
}

func TestPreference_GetSet(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	p := NewPreference(kv, "")

	got, err := p.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, Default, got)

	got, err = p.Set(ctx, "cs-CZ")
	require.NoError(t, err)
	require.Equal(t, "cs", got)
	stored, _ := kv.Get(ctx, model.KeyLanguage)
	require.Equal(t, "cs", stored)

	_, err = p.Set(ctx, "fr")
	require.ErrorIs(t, err, errs.ErrUnsupportedLanguage)
	got, _ = p.Get(ctx)
	require.Equal(t, "cs", got, "rejected value leaves preference")

	require.NoError(t, kv.Set(ctx, model.KeyLanguage, "klingon"))
	got, err = p.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, Default, got)
}

func TestPreference_DefaultFromConfig(t *testing.T) {
	got, err := NewPreference(memory.NewKV(), "cs").Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cs", got)
}

func TestTranslator(t *testing.T) {
	tr, err := NewTranslator()
	require.NoError(t, err)

	require.Equal(t, "Logout", tr.T("en", "common.logout"))
	require.Equal(t, "Odhlásit", tr.T("cs", "common.logout"))
	require.Equal(t, "Nástěnka", tr.T("cs", "dashboard.title"))
	require.Equal(t, "common.missing", tr.T("en", "common.missing"))
	require.Equal(t, "common", tr.T("en", "common"), "a branch is not a translation")
	require.Equal(t, "common.logout", tr.T("de", "common.logout"))
}

func TestDictionariesHaveSameKeys(t *testing.T) {
	tr, err := NewTranslator()
	require.NoError(t, err)
	en, cs := tr.entries["en"], tr.entries["cs"]
	require.Len(t, cs, len(en))
	for k := range en {
		if _, ok := cs[k]; !ok {
			t.Fatalf("cs dictionary misses %q", k)
		}
	}
}
