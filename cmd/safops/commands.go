package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/safops/pkg/safops/items"
	"github.com/arthur-debert/safops/pkg/safops/operations"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

var sortFields = map[string]items.SortKey{
	"name": items.SortByName,
	"date": items.SortByDateModified,
	"size": items.SortBySize,
	"ext":  items.SortByExtension,
}

func newLsCmd(flags *globalFlags) *cobra.Command {
	var (
		sortBy     string
		descending bool
	)

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a directory",
		Long:  "List a directory on any storage. The sort order is remembered between runs.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(cmd, flags)
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if dir, err = h.path(dir); err != nil {
				return err
			}

			cfg := h.client.Config
			key := items.SortKey(cfg.Sorting())
			if cmd.Flags().Changed("sort") || cmd.Flags().Changed("desc") {
				field, ok := sortFields[sortBy]
				if !ok {
					return fmt.Errorf("unknown sort field %q", sortBy)
				}
				key = field
				if descending {
					key |= items.SortDescending
				}
				if err := cfg.SetSorting(int(key)); err != nil {
					return fmt.Errorf("failed to save sorting: %w", err)
				}
			}
			items.SetSorting(key)

			list, err := h.client.Engine.List(cmd.Context(), dir)
			if err != nil {
				return err
			}
			items.SortCurrent(list)

			out := cmd.OutOrStdout()
			for _, it := range list {
				if it.IsDirectory {
					fmt.Fprintf(out, "d\t%d items\t%s\t%s/\n", it.Children, it.ModTime.Format(items.DateFormat), it.Name)
					continue
				}
				fmt.Fprintf(out, "-\t%s\t%s\t%s\n", humanize.IBytes(uint64(max(it.Size, 0))), it.ModTime.Format(items.DateFormat), it.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "name", "sort by name, date, size or ext")
	cmd.Flags().BoolVar(&descending, "desc", false, "reverse the sort order")

	return cmd
}

func newSizeCmd(flags *globalFlags) *cobra.Command {
	var (
		hidden bool
		bytes  bool
	)

	cmd := &cobra.Command{
		Use:   "size [path...]",
		Short: "Print the size of files and directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(cmd, flags)
			if err != nil {
				return err
			}
			for _, arg := range args {
				p, err := h.path(arg)
				if err != nil {
					return err
				}
				size, err := h.client.Engine.ProperSize(cmd.Context(), items.New(p, false), hidden)
				if err != nil {
					return err
				}
				if bytes {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", size, arg)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", humanize.IBytes(uint64(size)), arg)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hidden, "hidden", false, "count hidden files")
	cmd.Flags().BoolVar(&bytes, "bytes", false, "print sizes in bytes")

	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	var (
		recursive bool
		mediaOnly bool
	)

	cmd := &cobra.Command{
		Use:   "delete [path...]",
		Short: "Delete files and directories",
		Long: `Delete files and directories. Missing paths count as deleted.
With --media-only each argument is a folder whose images and videos are deleted;
the folder itself goes once it is empty.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(cmd, flags)
			if err != nil {
				return err
			}
			list, err := h.lookupAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, it := range list {
				if h.client.Classifier.IsStorageRoot(it.Path) {
					return fmt.Errorf("refusing to delete %s", h.client.Classifier.Humanize(it.Path))
				}
				if it.IsDirectory && !recursive && !mediaOnly {
					return fmt.Errorf("%s is a directory (use -r)", it.Path)
				}
			}

			if mediaOnly {
				for _, folder := range list {
					if err := h.client.Engine.DeleteFolder(cmd.Context(), folder, true); err != nil {
						return err
					}
				}
				return nil
			}

			result := h.client.Engine.DeleteFiles(cmd.Context(), list, recursive)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d\n", result.Count(), len(list))
			return result.Err()
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete directories with their contents")
	cmd.Flags().BoolVar(&mediaOnly, "media-only", false, "only delete images and videos inside the given folders")

	return cmd
}

func newCopyCmd(flags *globalFlags) *cobra.Command {
	return newTransferCmd(flags, "copy", "Copy files and directories into a directory", true)
}

func newMoveCmd(flags *globalFlags) *cobra.Command {
	return newTransferCmd(flags, "move", "Move files and directories into a directory", false)
}

func newTransferCmd(flags *globalFlags, name, short string, copyOnly bool) *cobra.Command {
	var mediaOnly bool

	cmd := &cobra.Command{
		Use:   name + " [source...] [destination]",
		Short: short,
		Long: short + `. All sources must share one parent directory.
Each item succeeds or fails on its own.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(cmd, flags)
			if err != nil {
				return err
			}
			dest, err := h.path(args[len(args)-1])
			if err != nil {
				return err
			}
			list := make([]items.FileDirItem, 0, len(args)-1)
			for _, arg := range args[:len(args)-1] {
				p, err := h.path(arg)
				if err != nil {
					return err
				}
				it, err := h.item(cmd.Context(), p)
				if err != nil {
					return err
				}
				list = append(list, it)
			}
			source := list[0].ParentPath()
			for _, it := range list[1:] {
				if it.ParentPath() != source {
					return fmt.Errorf("%s is not in %s", it.Path, source)
				}
			}

			result, err := h.client.Engine.CopyMove(cmd.Context(), operations.TransferRequest{
				Items:       list,
				Source:      source,
				Destination: strings.TrimRight(dest, "/"),
				CopyOnly:    copyOnly,
				MediaOnly:   mediaOnly,
			})
			if result.Batch.Succeeded != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d\n", result.Outcome, result.Batch.Count(), len(list))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&mediaOnly, "media-only", false, "only transfer images and videos")

	return cmd
}

func newRenameCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename [path] [new-name]",
		Short: "Rename a file or directory",
		Long:  "Rename a file or directory. A bare name keeps the entry in its directory.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(cmd, flags)
			if err != nil {
				return err
			}
			oldPath, err := h.path(args[0])
			if err != nil {
				return err
			}
			newPath := storage.Join(storage.ParentPath(oldPath), args[1])
			if strings.Contains(args[1], "/") {
				if newPath, err = h.path(args[1]); err != nil {
					return err
				}
			}
			return h.client.Engine.Rename(cmd.Context(), oldPath, newPath)
		},
	}
}

func newMkdirCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir [path...]",
		Short: "Create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(cmd, flags)
			if err != nil {
				return err
			}
			for _, arg := range args {
				p, err := h.path(arg)
				if err != nil {
					return err
				}
				if err := h.client.Engine.CreateDirectory(cmd.Context(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
