package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/browser"
)

// openURL is the platform opener. Replaced in tests.
var openURL = browser.OpenURL

// openBrowser asks the desktop to open url. Helper output goes to stderr so
// stdout stays clean for `token` and --json output.
func openBrowser(url string) error {
	browser.Stdout = os.Stderr

	return openURL(url)
}

// stdinIsTerminal reports whether a user is plausibly sitting at this
// process. Without one, the authorization URL is printed only.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
