// Package protect flags project paths whose edits need extra scrutiny:
// credentials, migrations, and infrastructure definitions.
package protect

// DefaultPatterns defines glob patterns for protected areas.
var DefaultPatterns = []string{
	"**/auth/**",
	"**/security/**",
	"**/migrations/**",
	"**/infra/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/certs/**",
	"**/.ssh/**",
	"**/terraform/**",
	"**/helm/**",
	"**/k8s/**",
	".github/workflows/**",
}

// DefaultFileTypes defines file extensions that are protected.
var DefaultFileTypes = []string{
	".sql",
	".tf",
	".pem",
	".key",
	".env",
	".p12",
	".pfx",
	".jks",
	".keystore",
	".crt",
}

// DefaultFileNames are lock files and environment files matched by base name.
var DefaultFileNames = []string{
	".env",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
	"Cargo.lock",
}
