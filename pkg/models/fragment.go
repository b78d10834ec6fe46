package models

// Fragment is a generated artifact owned by exactly one assistant message.
// It is persisted in the same store batch as its owning message, so readers
// never observe one without the other.
type Fragment struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	// Files maps relative path -> file contents for the generated bundle.
	Files map[string]string `json:"files,omitempty"`
	// SandboxURL is opaque preview metadata; the core stores it untouched.
	SandboxURL string `json:"sandbox_url,omitempty"`
	TS         int64  `json:"ts"`
}
