package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/arbor/pkg/adapters/file"
)

// Convert rewrites the model file in into out. Both formats follow the
// file extensions.
func Convert(w io.Writer, in, out string) error {
	m, err := file.LoadModel(in)
	if err != nil {
		return err
	}
	if _, err := file.FormatOf(out); err != nil {
		return err
	}
	if err := file.WriteModel(out, m); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	printSystemMessage(w, "Wrote %s (%d nodes).", out, m.Tree.Len())
	return nil
}
