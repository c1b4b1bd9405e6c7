package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide prints what the user has to do in the browser window.
func ShowLoginGuide(w io.Writer, loginURL, marker string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🔑 SIGN IN TO THE SETUP SITE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "A Chrome window is opening at %s\n", loginURL)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   1. Sign in with your account (any method the site offers)")
	fmt.Fprintf(w, "   2. Wait until the page address contains %q\n", marker)
	fmt.Fprintln(w, "   3. Leave the window open, it closes by itself")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "💡 The session is kept in the browser profile, so later runs can be headless.")
	fmt.Fprintln(w, "   Press Ctrl+C to give up.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
