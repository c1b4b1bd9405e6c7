package browser

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"setupsync/pkg/config"
)

func TestOptions(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	base := len(Options(config.BrowserConfig{Headless: true}, ""))

	full := Options(cfg, "agent")
	// profile, window size and user agent on top of the headless base
	assert.Equal(t, base+3, len(full))

	cfg.ExecPath = "/usr/bin/chromium"
	assert.Equal(t, base+4, len(Options(cfg, "agent")))

	headed := Options(config.BrowserConfig{Headless: false}, "")
	assert.Equal(t, base, len(headed))
}

func TestCountScriptQuotesArguments(t *testing.T) {
	script, err := countScript(`div[data-x="a"]`, `(Inactive) "quoted"`)
	require.NoError(t, err)
	assert.Contains(t, script, `document.querySelectorAll("div[data-x=\"a\"]")`)
	assert.Contains(t, script, `const text = "(Inactive) \"quoted\"";`)
}

func TestToHTTPCookies(t *testing.T) {
	in := []*network.Cookie{
		{Name: "session", Value: "abc", Domain: ".tracktitan.io", Path: "/", Secure: true, HTTPOnly: true},
		nil,
		{Name: "theme", Value: "dark"},
	}

	out := toHTTPCookies(in)
	require.Len(t, out, 2)
	assert.Equal(t, "session", out[0].Name)
	assert.Equal(t, "abc", out[0].Value)
	assert.Equal(t, ".tracktitan.io", out[0].Domain)
	assert.True(t, out[0].Secure)
	assert.True(t, out[0].HttpOnly)
	assert.Equal(t, "theme", out[1].Name)
}
