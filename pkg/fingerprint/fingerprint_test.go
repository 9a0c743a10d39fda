package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testEnv() Environment {
	return Environment{
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		Language:         "en-AU",
		ColorDepth:       24,
		ScreenWidth:      1920,
		ScreenHeight:     1080,
		TimezoneOffset:   -600,
		CookiesEnabled:   true,
		JavaEnabled:      false,
		PDFViewerEnabled: true,
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	env := testEnv()
	require.Equal(t, Compute(env), Compute(env),
		"identical environments must yield identical fingerprints")
}

func TestComputeLengthAndCharset(t *testing.T) {
	t.Parallel()

	fp := Compute(testEnv())
	require.Len(t, fp, Length)
	require.Regexp(t, "^[0-9a-f]+$", fp)
}

func TestComputeDiffersPerAttribute(t *testing.T) {
	t.Parallel()

	base := Compute(testEnv())

	mutations := map[string]func(*Environment){
		"user agent":  func(e *Environment) { e.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)" },
		"language":    func(e *Environment) { e.Language = "de-DE" },
		"color depth": func(e *Environment) { e.ColorDepth = 30 },
		"screen":      func(e *Environment) { e.ScreenWidth = 1280 },
		"timezone":    func(e *Environment) { e.TimezoneOffset = 120 },
		"cookies":     func(e *Environment) { e.CookiesEnabled = false },
		"java":        func(e *Environment) { e.JavaEnabled = true },
		"pdf viewer":  func(e *Environment) { e.PDFViewerEnabled = false },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			env := testEnv()
			mutate(&env)
			require.NotEqual(t, base, Compute(env))
		})
	}
}

func TestComputeFieldOrderMatters(t *testing.T) {
	t.Parallel()

	// Swapping width and height must change the fingerprint: the tuple is
	// ordered, "1920x1080" and "1080x1920" are different devices.
	a := testEnv()
	b := testEnv()
	b.ScreenWidth, b.ScreenHeight = a.ScreenHeight, a.ScreenWidth

	require.NotEqual(t, Compute(a), Compute(b))
}

func TestFallback(t *testing.T) {
	t.Parallel()

	env := testEnv()
	fp := Fallback(env)

	require.LessOrEqual(t, len(fp), Length)
	require.Equal(t, fp, Fallback(env), "fallback mode is deterministic too")

	env.ScreenWidth = 640
	require.NotEqual(t, fp, Fallback(env))
}
