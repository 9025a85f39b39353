package version

// Set with -ldflags "-X couchremote/internal/app/version.buildVersion=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

// Info is what GET /version reports.
type Info struct {
	BuildVersion string `json:"buildVersion"`
	BuiltAt      string `json:"builtAt"`
}

func Get() Info {
	return Info{BuildVersion: buildVersion, BuiltAt: builtAt}
}
