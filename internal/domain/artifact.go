package domain

import "strings"

// MarkerFileName is the freshness marker kept next to a partial download.
// It holds the display name of the remote artifact the partial belongs to.
const MarkerFileName = ".artifact-name"

// PartialSuffix is appended to FileName while the fetch tool is writing it.
const PartialSuffix = ".part"

// Artifact is the file the remote site offers for a catalog entry
type Artifact struct {
	// Name is the display name scraped from the item page
	Name string

	// FileName is the local file name the artifact is stored under
	FileName string

	// URL is the direct download URL
	URL string
}

// PartialName returns the name of the in-progress file for this artifact
func (a Artifact) PartialName() string {
	return a.FileName + PartialSuffix
}

// Validate checks that the artifact can be fetched
func (a Artifact) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return NewSkippableError(ErrInvalidInput, "artifact name is empty")
	}
	if a.FileName == "" || strings.ContainsAny(a.FileName, `/\`) || a.FileName == "." || a.FileName == ".." {
		return NewSkippableError(ErrInvalidInput, "invalid artifact file name "+a.FileName)
	}
	if a.URL == "" {
		return NewSkippableError(ErrInvalidInput, "artifact url is empty")
	}
	return nil
}

// MarkerMatches reports whether a stored marker value belongs to this artifact
func (a Artifact) MarkerMatches(stored string) bool {
	return strings.TrimSpace(stored) == strings.TrimSpace(a.Name)
}
