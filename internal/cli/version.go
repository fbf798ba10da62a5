package cli

import (
	"fmt"
	"io"

	"github.com/clipinspect/videometa/internal/videometa"
)

var appVersion = "dev"

func SetVersion(version string) {
	if version != "" {
		appVersion = version
	}
}

func Version(stdout io.Writer) {
	fmt.Fprintf(stdout, "%s, %s\n", videometa.AppName, videometa.FormatVersion(appVersion))
}
