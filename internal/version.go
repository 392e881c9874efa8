package internal

// Version is the current release of perfil.
const Version = "0.1.0"

// commit is filled in at build time:
// -ldflags "-X github.com/catalogo-app/perfil/internal.commit=$(git rev-parse --short HEAD)"
var commit string

// VersionString returns the release, followed by the commit it was built
// from when that is known.
func VersionString() string {
	if commit == "" {
		return Version
	}
	return Version + "+" + commit
}
