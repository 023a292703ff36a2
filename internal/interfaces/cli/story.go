package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	var story string
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Turn a free-text family story into members",
		Long: "Reads a family story and asks the configured language model for the people\n" +
			"it mentions. Every person found is added as a new member; if the model\n" +
			"fails nothing is added.",
		Example: `  kinkeep import grandma.txt
  echo "My grandfather Joe Smith was born in 1920..." | kinkeep import -
  kinkeep import --story "Aunt Mary Jones, born Smith, married in 1975."`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readStory(cmd, story, args)
			if err != nil {
				return err
			}

			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			res, err := svc.ImportStory(ctx, text)
			if err != nil {
				return err
			}
			return PrintResult(cmd, importResult{res})
		},
	}
	cmd.Flags().StringVar(&story, "story", "", "story text (instead of a file)")
	return cmd
}

func readStory(cmd *cobra.Command, story string, args []string) (string, error) {
	switch {
	case story != "" && len(args) > 0:
		return "", errors.InvalidParam("give the story as a file or with --story, not both")
	case story != "":
		return story, nil
	case len(args) == 0:
		return "", errors.InvalidParam("no story given; pass a file, - for stdin, or --story")
	}

	var (
		raw []byte
		err error
	)
	if args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeBadRequest, "cannot read story").WithDetail(args[0])
	}
	return string(raw), nil
}

type importResult struct {
	res *family.ImportResult
}

func (r importResult) JSON() interface{} { return r.res }

func (r importResult) TableHeaders() []string {
	return []string{"Name", "Maiden Name", "Born", "Died", "Gender", "ID"}
}

func (r importResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.res.Members))
	for i := range r.res.Members {
		m := &r.res.Members[i]
		rows = append(rows, []string{m.FullName(), m.MaidenName, m.BirthDate, m.DeathDate, genderLabel(m.Gender), m.ID})
	}
	return rows
}

func (r importResult) String() string {
	if r.res.Imported == 0 {
		return "The story did not mention anyone new. Nothing was added.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Imported %d member(s):\n", r.res.Imported)
	for i := range r.res.Members {
		m := &r.res.Members[i]
		fmt.Fprintf(&sb, "  %-40s %s\n", displayName(m), m.ID)
	}
	return sb.String()
}

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var format, out string
	var publish bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole family record as JSON or a spreadsheet",
		Example: `  kinkeep export --format xlsx
  kinkeep export --format json --out - | jq '.members | length'
  kinkeep export --format xlsx --publish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := family.ParseExportFormat(format)
			if err != nil {
				return err
			}

			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			if publish {
				pub, err := svc.PublishExport(ctx, f)
				if err != nil {
					return err
				}
				return printPublished(cmd, pub)
			}

			exp, err := svc.Export(ctx, f)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(exp.Data)
				return err
			}
			path := out
			if path == "" {
				path = exp.Filename
			} else if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				path = filepath.Join(path, exp.Filename)
			}
			if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
				return errors.Wrap(err, errors.ErrCodeStorageError, "cannot write export").WithDetail(path)
			}
			msg := fmt.Sprintf("wrote %s (%d bytes)", path, len(exp.Data))
			if exp.Members > 0 {
				msg = fmt.Sprintf("wrote %d members to %s", exp.Members, path)
			}
			PrintSuccess(cmd, msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file or directory, - for stdout (default: generated file name)")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload to object storage instead of writing a file")
	cmd.MarkFlagsMutuallyExclusive("out", "publish")
	return cmd
}

func printPublished(cmd *cobra.Command, pub *family.PublishedExport) error {
	cliCtx, err := GetCLIContext(cmd)
	if err == nil && cliCtx.OutputFormat == "json" {
		return printJSON(cmd, pub)
	}
	PrintSuccess(cmd, fmt.Sprintf("published %s (%d members)", pub.Filename, pub.Members))
	fmt.Fprintln(cmd.OutOrStdout(), pub.URL)
	return nil
}
