package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DownloadsURL is Chrome's download manager page
const DownloadsURL = "chrome://downloads/"

// The download manager renders into nested shadow roots; every script
// resolves the first entry of the list the same way.
const firstEntryJS = `const mgr = document.querySelector('downloads-manager');
	const item = mgr && mgr.shadowRoot ? mgr.shadowRoot.querySelector('#downloadsList downloads-item') : null;`

// downloadEntryJS reports the first download manager entry as JSON, or "null"
const downloadEntryJS = `() => {
	` + firstEntryJS + `
	if (!item || !item.shadowRoot) return JSON.stringify(null);
	const link = item.shadowRoot.querySelector('div#content #file-link');
	const bar = item.shadowRoot.querySelector('#progress');
	const data = item.data || {};
	return JSON.stringify({
		url: link ? link.href : (data.url || ''),
		fileName: link ? link.text : (data.fileName || ''),
		state: data.state || '',
		percent: bar && bar.value !== undefined ? Number(bar.value) : (data.percent === undefined ? -1 : Number(data.percent)),
		status: data.progressStatusText || '',
	});
}`

// cancelDownloadJS clicks the cancel button of the first entry
const cancelDownloadJS = `() => {
	` + firstEntryJS + `
	if (!item || !item.shadowRoot) return JSON.stringify(false);
	const button = item.shadowRoot.querySelector('cr-button[focus-type="cancel"]');
	if (!button) return JSON.stringify(false);
	button.click();
	return JSON.stringify(true);
}`

const scrollToEndJS = `() => { window.scrollTo(0, document.body.scrollHeight); return JSON.stringify(true); }`

// Download states reported by the download manager
const (
	stateInProgress = "IN_PROGRESS"
	stateComplete   = "COMPLETE"
	stateCancelled  = "CANCELLED"
	stateInterrupt  = "INTERRUPTED"
)

// downloadEntry is one row of chrome://downloads
type downloadEntry struct {
	URL      string  `json:"url"`
	FileName string  `json:"fileName"`
	State    string  `json:"state"`
	Percent  float64 `json:"percent"`
	Status   string  `json:"status"`
}

// complete reports whether the browser finished writing the file
func (e *downloadEntry) complete() bool {
	if e.State != "" {
		return strings.EqualFold(e.State, stateComplete)
	}
	return e.Percent >= 100
}

// failed reports whether the browser gave up on the download
func (e *downloadEntry) failed() bool {
	return strings.EqualFold(e.State, stateCancelled) || strings.EqualFold(e.State, stateInterrupt)
}

// parseDownloadEntry decodes the result of downloadEntryJS.
// A nil entry means the manager has no entry yet.
func parseDownloadEntry(raw string) (*downloadEntry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var entry *downloadEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode download entry: %w", err)
	}
	if entry != nil {
		entry.FileName = strings.TrimSpace(entry.FileName)
	}
	return entry, nil
}

// decodeScriptResult unwraps a value produced by JSON.stringify in a page
// script. The remote object is itself a JSON string holding that text.
func decodeScriptResult(raw string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", fmt.Errorf("unexpected script result %q: %w", raw, err)
	}
	return s, nil
}
