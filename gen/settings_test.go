package gen

import (
	"encoding/json"
	"testing"

	"qaforge/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSettingsHash(t *testing.T) {
	base := types.GenerationSettings{
		Model:            "gpt-4o-mini",
		Temperature:      0.2,
		MaxCases:         10,
		Instructions:     "focus on authentication flows",
		CoverageMode:     "thorough",
		IncludeNegative:  true,
		IncludeEdgeCases: false,
	}

	t.Run("Should be stable for equal settings", func(t *testing.T) {
		assert.Equal(t, BuildSettingsHash(base), BuildSettingsHash(base))
	})

	t.Run("Should not depend on JSON key order", func(t *testing.T) {
		var a, b types.GenerationSettings
		require.NoError(t, json.Unmarshal([]byte(
			`{"model":"gpt-4o-mini","temperature":0.2,"max_cases":10}`), &a))
		require.NoError(t, json.Unmarshal([]byte(
			`{"max_cases":10,"temperature":0.2,"model":"gpt-4o-mini"}`), &b))
		assert.Equal(t, BuildSettingsHash(a), BuildSettingsHash(b))
	})

	t.Run("Should not collide when a field value imitates another field", func(t *testing.T) {
		a := base
		a.Instructions = "x|coverage=3:y"
		a.CoverageMode = "z"

		b := base
		b.Instructions = "x"
		b.CoverageMode = "y|coverage=3:z"

		assert.NotEqual(t, BuildSettingsHash(a), BuildSettingsHash(b),
			"delimiter characters inside a field must not shift field boundaries")
	})

	t.Run("Should keep full temperature precision", func(t *testing.T) {
		a := base
		a.Temperature = 0.20000001
		assert.NotEqual(t, BuildSettingsHash(base), BuildSettingsHash(a))
	})

	t.Run("Should collapse whitespace in instructions", func(t *testing.T) {
		a := base
		a.Instructions = "focus  on\n authentication\t flows "
		assert.Equal(t, BuildSettingsHash(base), BuildSettingsHash(a))
	})

	t.Run("Should change when any field changes", func(t *testing.T) {
		hashes := map[string]string{"base": BuildSettingsHash(base)}

		m := base
		m.Model = "gpt-4o"
		hashes["model"] = BuildSettingsHash(m)

		n := base
		n.MaxCases = 20
		hashes["max_cases"] = BuildSettingsHash(n)

		tmp := base
		tmp.Temperature = 0.7
		hashes["temperature"] = BuildSettingsHash(tmp)

		neg := base
		neg.IncludeNegative = false
		hashes["negative"] = BuildSettingsHash(neg)

		seen := map[string]string{}
		for name, h := range hashes {
			if prev, ok := seen[h]; ok {
				t.Fatalf("settings %q and %q collide on hash %s", prev, name, h)
			}
			seen[h] = name
		}
	})

	t.Run("Should produce an opaque fixed-length key", func(t *testing.T) {
		assert.Len(t, BuildSettingsHash(base), 16)
	})
}
