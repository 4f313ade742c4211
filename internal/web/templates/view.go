// Package templates holds the HTML components of the operator console.
//
// Components are written in .templ files; run `templ generate` after
// editing them to refresh the _templ.go files.
package templates

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/erpload/internal/core"
)

// PageView is everything the console page shows for one session.
type PageView struct {
	SessionID   string
	Accepted    core.AcceptedType
	MaxFileSize int64
	Slot        core.SlotState
	Selected    *core.UploadCandidate
	Folio       core.FolioState
	Entries     []core.EntryView
	// Prompt is a blocking message for the last action, if it was rejected.
	Prompt *core.UserMessage
}

func acceptAttr(a core.AcceptedType) string {
	parts := append([]string{a.Extension}, a.MediaTypes...)
	return strings.Join(parts, ",")
}

// extLabel is the accepted extension as operators know it ("CSV").
func extLabel(a core.AcceptedType) string {
	return strings.ToUpper(strings.TrimPrefix(a.Extension, "."))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// pendingValue is empty for an unknown folio so the input starts blank.
func pendingValue(f core.Folio) string {
	if !f.Valid {
		return ""
	}
	return f.String()
}

func previewCaption(p *core.Preview) string {
	return fmt.Sprintf("%d data rows, first %d shown", p.TotalRows, len(p.Rows))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
