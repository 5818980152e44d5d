package utils

import (
	"os"

	"github.com/bootforge/bootforge/internal/constants"
	"github.com/joho/godotenv"
)

// DistroName returns the pretty name of the running distribution for menu
// labels. os-release is a godotenv-compatible key=value file. Defaults to
// "Linux" when nothing useful is found.
func DistroName() string {
	path := constants.OSReleasePath
	if override := os.Getenv("HOST_OS_RELEASE"); override != "" {
		path = override
	}

	env, err := godotenv.Read(path)
	if err != nil {
		Log.Debug().Err(err).Str("path", path).Msg("Reading os-release")
		return "Linux"
	}
	if name := env["PRETTY_NAME"]; name != "" {
		return name
	}
	if name := env["NAME"]; name != "" {
		return name
	}
	return "Linux"
}
