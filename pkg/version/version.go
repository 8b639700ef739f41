package version

// Set with -ldflags "-X github.com/meftunca/postbench/pkg/version.Version=..."
var (
	Version   = "0.1.0"
	BuildDate = ""
	GitCommit = ""
)

const (
	// AppName is the application name
	AppName = "postbench"

	// AppDescription is the application description
	AppDescription = "Sequential HTTP POST latency probe"
)

// UserAgent is sent with every probe request
func UserAgent() string {
	return AppName + "/" + Version
}

// GetVersionInfo returns formatted version information
func GetVersionInfo() map[string]string {
	return map[string]string{
		"name":        AppName,
		"version":     Version,
		"description": AppDescription,
		"build_date":  BuildDate,
		"git_commit":  GitCommit,
	}
}
