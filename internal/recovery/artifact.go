package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteArtifact renders rec as plain text and writes it to path, creating the
// parent directory if needed.
func WriteArtifact(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(RenderArtifact(rec)), 0o644); err != nil {
		return fmt.Errorf("failed to write recovery artifact %s: %w", path, err)
	}
	return nil
}

// RenderArtifact formats rec for humans.
func RenderArtifact(rec Record) string {
	var b strings.Builder

	b.WriteString("BOOT RECOVERY REQUIRED\n")
	b.WriteString("======================\n\n")
	fmt.Fprintf(&b, "Time:             %s\n", rec.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Triggering phase: %s (phase %d)\n", rec.TriggeringPhase, rec.Ordinal)
	fmt.Fprintf(&b, "Reason:           %s\n", rec.Reason)
	fmt.Fprintf(&b, "Fallback address: %s on %s\n", rec.FallbackAddress, rec.Interface)

	switch {
	case !rec.Posture:
		b.WriteString("Fallback network: disabled\n")
		b.WriteString("Remote access:    disabled\n")
	default:
		fmt.Fprintf(&b, "Fallback network: %s\n", stepStatus(rec.NetworkErr))
		fmt.Fprintf(&b, "Remote access:    %s\n", stepStatus(rec.RemoteAccessErr))
	}

	b.WriteString("\nNext steps:\n")
	for i, s := range rec.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	return b.String()
}

func stepStatus(err error) string {
	if err != nil {
		return "FAILED: " + err.Error()
	}
	return "up"
}
