package screen

import (
	"strings"
)

// Identity is the stable cache key for "what the user is looking at":
// application name plus either a browser URL (for tabbed browsers) or a
// window title fallback. Editors collapse to a constant placeholder so the
// identity does not re-key on every keystroke-driven title change.
type Identity struct {
	App string
	Key string // URL for browsers, title (or placeholder) otherwise
}

// String returns the flat cache-key form of the identity.
func (id Identity) String() string {
	return id.App + "|" + id.Key
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.App == "" && id.Key == ""
}

// editorPlaceholder replaces volatile editor titles. Editors rewrite their
// title on every modification ("file.go — modified"), which must not re-key
// the cache for the same logical content.
const editorPlaceholder = "editor-session"

// browserApps are applications keyed by URL rather than title.
var browserApps = map[string]bool{
	"chrome":          true,
	"google chrome":   true,
	"safari":          true,
	"firefox":         true,
	"microsoft edge":  true,
	"edge":            true,
	"arc":             true,
	"brave":           true,
	"brave browser":   true,
	"opera":           true,
	"vivaldi":         true,
	"chromium":        true,
}

// editorApps are applications whose titles fluctuate with document state.
var editorApps = map[string]bool{
	"code":               true,
	"visual studio code": true,
	"vscode":             true,
	"sublime text":       true,
	"intellij idea":      true,
	"goland":             true,
	"pycharm":            true,
	"webstorm":           true,
	"xcode":              true,
	"zed":                true,
	"neovide":            true,
	"textedit":           true,
	"notepad":            true,
	"notepad++":          true,
}

// IsBrowser reports whether the application is keyed by URL.
func IsBrowser(app string) bool {
	return browserApps[strings.ToLower(strings.TrimSpace(app))]
}

// DeriveIdentity builds the cache key for a foreground sample. Browsers key
// on app+URL; editors collapse the title to a constant placeholder;
// everything else keys on app+title.
func DeriveIdentity(app, title, url string) Identity {
	app = strings.TrimSpace(app)
	lower := strings.ToLower(app)

	if browserApps[lower] && url != "" {
		return Identity{App: app, Key: url}
	}
	if editorApps[lower] {
		return Identity{App: app, Key: editorPlaceholder}
	}
	return Identity{App: app, Key: strings.TrimSpace(title)}
}
