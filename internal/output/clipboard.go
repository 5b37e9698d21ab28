package output

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// ClipboardSink places text on the system clipboard.
type ClipboardSink struct{}

// Deliver implements Sink.
func (ClipboardSink) Deliver(_ context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
