package videometa

const (
	AppName = "videometa"
	AppURL  = "https://github.com/clipinspect/videometa"
)

var AppVersion = "dev"

func SetAppVersion(version string) {
	if version != "" {
		AppVersion = version
	}
}

// FormatVersion renders a version string the way the CLI's --version
// output prints it.
func FormatVersion(version string) string {
	if version == "" || version == "dev" {
		return "dev"
	}
	return "v" + version
}
