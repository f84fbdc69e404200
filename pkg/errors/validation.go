package errors

import (
	"net/url"
	"regexp"
	"strings"
)

// maxProblemName bounds instance names; the longest TSPLIB name is far shorter.
const maxProblemName = 128

// problemNamePattern matches TSPLIB instance names such as "burma14", "gr17"
// or "a280".
var problemNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateProblemName rejects instance names that are empty, too long, or
// could escape the data directory they are resolved in.
func ValidateProblemName(name string) error {
	switch {
	case name == "":
		return New(ErrCodeInvalidProblem, "problem name cannot be empty")
	case len(name) > maxProblemName:
		return New(ErrCodeInvalidProblem, "problem name too long (max %d characters)", maxProblemName)
	case strings.Contains(name, ".."):
		return New(ErrCodeInvalidProblem, "problem name contains invalid characters: %q", "..")
	case !problemNamePattern.MatchString(name):
		return New(ErrCodeInvalidProblem, "invalid problem name: %q", name)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}
	return nil
}
