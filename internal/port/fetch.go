package port

import "context"

// FetchRequest describes one invocation of the external fetch tool
type FetchRequest struct {
	URL string

	// Path is the file the tool writes into
	Path string

	// Resume continues an existing partial file instead of truncating it
	Resume bool
}

// FetchTool transfers bytes by delegating to an external program
type FetchTool interface {
	Fetch(ctx context.Context, req FetchRequest) error
}
