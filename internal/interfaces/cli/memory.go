package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// NewMemoryCmd creates the memory command
func NewMemoryCmd() *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"memories"},
		Short:   "Attach stories, photos and videos to a member",
	}
	memoryCmd.AddCommand(newMemoryAddCmd(), newMemoryRemoveCmd())
	return memoryCmd
}

func newMemoryAddCmd() *cobra.Command {
	var kind, title, content, file, date string
	cmd := &cobra.Command{
		Use:   "add <member-id>",
		Short: "Add a memory to a member",
		Example: `  kinkeep memory add <id> --title "Summer 1962" --content "We drove to the coast..."
  kinkeep memory add <id> --type image --content https://example.com/photo.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeBadRequest, "cannot read memory content").WithDetail(file)
				}
				content = string(raw)
			}
			if strings.TrimSpace(content) == "" {
				return errors.InvalidParam("memory content is required (--content or --file)")
			}

			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			m, err := svc.AddMemory(ctx, args[0], &family.MemoryInput{
				Kind:    kind,
				Title:   title,
				Content: content,
				Date:    date,
			})
			if err != nil {
				return err
			}
			added := m.Memories[len(m.Memories)-1]
			return printMember(cmd, m, fmt.Sprintf("added memory %s to %s", added.ID, m.FullName()))
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "text", "text, image or video")
	cmd.Flags().StringVar(&title, "title", "", "memory title")
	cmd.Flags().StringVar(&content, "content", "", "text, link or data URL")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from a file")
	cmd.Flags().StringVar(&date, "date", "", "memory date (default: today)")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
	return cmd
}

func newMemoryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <member-id> <memory-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a memory from a member",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			m, err := svc.RemoveMemory(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printMember(cmd, m, fmt.Sprintf("removed memory %s from %s", args[1], m.FullName()))
		},
	}
}
