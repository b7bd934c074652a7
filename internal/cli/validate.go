package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillnb/quill/internal/schema"
)

// eventDocument is the JSON shape validate accepts: a named payload,
// exactly what an external writer would submit at the boundary.
type eventDocument struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// FileValidation holds the validation outcome for one input file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationSummary holds the validation results for all inputs.
type ValidationSummary struct {
	Files    []FileValidation `json:"files"`
	AllValid bool             `json:"all_valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <event.json> [more.json...]",
		Short: "Validate event JSON against the payload schemas",
		Long: `Validate event documents against the CUE payload schemas.

Each input file holds one event document: {"name": "v1.ExecutionRequested",
"payload": {...}}. Use "-" to read a single document from stdin. Validation
is the same boundary check the engine applies before appending.

Exit codes:
  0 - All documents valid
  1 - At least one document invalid
  2 - Command error (unreadable file, malformed JSON)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	schemas, err := schema.NewRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schemas", err)
	}

	summary := ValidationSummary{AllValid: true}

	for _, path := range paths {
		doc, err := readEventDocument(cmd.InOrStdin(), path)
		if err != nil {
			_ = formatter.Error(ErrCodeInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read event document", err)
		}

		formatter.VerboseLog("Validating %s (%s)", path, doc.Name)

		result := FileValidation{File: path, Name: doc.Name, Valid: true}
		if err := schemas.ValidatePayload(doc.Name, doc.Payload); err != nil {
			result.Valid = false
			result.Error = err.Error()
			summary.AllValid = false
		}
		summary.Files = append(summary.Files, result)
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, f := range summary.Files {
			if f.Valid {
				fmt.Fprintf(w, "✓ %s (%s)\n", f.File, f.Name)
			} else {
				fmt.Fprintf(w, "✗ %s (%s): %s\n", f.File, f.Name, f.Error)
			}
		}
	}

	if !summary.AllValid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func readEventDocument(stdin io.Reader, path string) (*eventDocument, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc eventDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("%s: missing event name", path)
	}
	if len(doc.Payload) == 0 {
		return nil, fmt.Errorf("%s: missing payload", path)
	}
	return &doc, nil
}
