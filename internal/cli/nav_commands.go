package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/state"
)

// newSpacesCmd creates the 'spaces' command.
func newSpacesCmd() *cobra.Command {
	var reload bool

	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "List spaces; the current one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if reload {
				if err := a.svc.LoadSpaces(ctx); err != nil {
					return err
				}
			}
			printSpaces(cmd.OutOrStdout(), a.svc.Navigator().Spaces(), a.svc.Navigator().Location().SpaceID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reload, "reload", false, "Fetch the space list again and open the first space")
	return cmd
}

func printSpaces(out io.Writer, spaces []models.Space, current string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range spaces {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, s.ID, s.Caption, s.Class)
	}
	w.Flush()
}

// newCdCmd creates the 'cd' command.
func newCdCmd() *cobra.Command {
	var crumb int
	var space string

	cmd := &cobra.Command{
		Use:   "cd [folder[/folder...] | .. | /Space/folder]",
		Short: "Change the current folder",
		Long: `Change the current folder. The new location is listed before it is
entered; if the listing fails you stay where you were.

Examples:
  spacefiler cd docs            # open a folder of the current listing
  spacefiler cd docs/2024       # open nested folders one by one
  spacefiler cd ..              # go up one level
  spacefiler cd /Team/reports   # start from a space, by id or name
  spacefiler cd --space s2      # switch space
  spacefiler cd --crumb 1       # re-open the second breadcrumb
  spacefiler cd                 # back to the space root`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			nav := a.svc.Navigator()
			switch {
			case space != "":
				s, ok := findSpace(nav.Spaces(), space)
				if !ok {
					return fmt.Errorf("%w: %s", state.ErrUnknownSpace, space)
				}
				err = nav.SwitchSpace(ctx, s)
			case cmd.Flags().Changed("crumb"):
				err = nav.JumpTo(ctx, crumb)
			case len(args) == 1:
				err = changeDir(ctx, nav, args[0])
			default:
				err = nav.JumpTo(ctx, 0)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nav.Path())
			return nil
		},
	}

	cmd.Flags().IntVar(&crumb, "crumb", 0, "Breadcrumb index to jump to (0 is the space root)")
	cmd.Flags().StringVar(&space, "space", "", "Space id or name to switch to")
	return cmd
}

// findSpace matches by id first, then by caption ignoring case.
func findSpace(spaces []models.Space, arg string) (models.Space, bool) {
	for _, s := range spaces {
		if s.ID == arg {
			return s, true
		}
	}
	for _, s := range spaces {
		if strings.EqualFold(s.Caption, arg) {
			return s, true
		}
	}
	return models.Space{}, false
}

// changeDir walks target one step at a time. A leading "/" starts from the
// space named by the first component.
func changeDir(ctx context.Context, nav *state.Navigator, target string) error {
	steps := strings.Split(target, "/")
	if strings.HasPrefix(target, "/") {
		steps = steps[1:]
		for len(steps) > 0 && steps[0] == "" {
			steps = steps[1:]
		}
		if len(steps) == 0 {
			return nav.JumpTo(ctx, 0)
		}
		s, ok := findSpace(nav.Spaces(), steps[0])
		if !ok {
			return fmt.Errorf("%w: %s", state.ErrUnknownSpace, steps[0])
		}
		if err := nav.SwitchSpace(ctx, s); err != nil {
			return err
		}
		steps = steps[1:]
	}

	for _, step := range steps {
		switch step {
		case "", ".":
			continue
		case "..":
			if p := nav.Path(); len(p) > 1 {
				if err := nav.JumpTo(ctx, len(p)-2); err != nil {
					return err
				}
			}
			continue
		}

		item, ok := nav.List().FindByName(step)
		if !ok {
			return fmt.Errorf("no folder named %q in %s", step, nav.Path())
		}
		if err := nav.OpenFolder(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// newPwdCmd creates the 'pwd' command.
func newPwdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pwd",
		Short: "Print the current path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(GetContext(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			nav := a.svc.Navigator()
			fmt.Fprintln(out, nav.Path())
			if verbose || debug {
				loc := nav.Location()
				fmt.Fprintf(out, "space=%s folder=%s current=%s\n", loc.SpaceID, loc.FolderID, loc.CurrentID)
			}
			return nil
		},
	}
	return cmd
}

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var sortBy string
	var desc bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the current folder",
		Long: `List the current folder, folders first.

--sort and --desc change the remembered order for later listings too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(GetContext(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			files := a.svc.Files()
			if cmd.Flags().Changed("sort") || cmd.Flags().Changed("desc") {
				order, err := parseSortOrder(sortBy, desc, files.GetSort())
				if err != nil {
					return err
				}
				files.SetSort(order)
			}
			if err := files.GetError(); err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), files.GetItems())
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "name", "Sort key: name or time")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	return cmd
}

// parseSortOrder builds the order from the flags, keeping the current
// direction when only the key changes.
func parseSortOrder(sortBy string, desc bool, current models.SortOrder) (models.SortOrder, error) {
	order := current
	switch strings.ToLower(sortBy) {
	case "name", "item_name":
		order.Field = models.SortByName
	case "time", "modified", "modified_time":
		order.Field = models.SortByModifiedTime
	default:
		return current, fmt.Errorf("invalid --sort %q (want name or time)", sortBy)
	}
	order.Order = models.SortAsc
	if desc {
		order.Order = models.SortDesc
	}
	return order, nil
}

func printItems(out io.Writer, items []models.Item) {
	if len(items) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODIFIED\tPERM\tID")
	for _, item := range items {
		name := item.ItemName
		if item.IsFolder {
			name += "/"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, item.ModifiedTime, permString(item.Permissions), item.ItemID)
	}
	w.Flush()
}

func permString(p models.Permissions) string {
	b := []byte("--")
	if p.Readable {
		b[0] = 'r'
	}
	if p.Writable {
		b[1] = 'w'
	}
	return string(b)
}

// newInfoCmd creates the 'info' command.
func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [name...]",
		Short: "Show the current location or the permissions of selected items",
		Long: `Without arguments, show the current location. With names, select
those items of the current listing and show what the selection allows:
an action is allowed only if every selected item allows it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(GetContext(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			nav := a.svc.Navigator()
			files := a.svc.Files()

			if len(args) == 0 {
				loc := nav.Location()
				order := files.GetSort()
				fmt.Fprintf(out, "Path:    %s\n", nav.Path())
				fmt.Fprintf(out, "Space:   %s\n", loc.SpaceID)
				if loc.FolderID != "" {
					fmt.Fprintf(out, "Folder:  %s\n", loc.FolderID)
				}
				fmt.Fprintf(out, "Items:   %d\n", files.Count())
				fmt.Fprintf(out, "Sort:    %s %s\n", order.Field, order.Order)
				return nil
			}

			for _, name := range args {
				item, ok := files.FindByName(name)
				if !ok {
					return fmt.Errorf("no item named %q in %s", name, nav.Path())
				}
				files.Select(item)
			}

			sel := files.Selection()
			for _, name := range args {
				item, _ := files.FindByName(name)
				entry := sel[item.ItemID]
				kind := "file"
				if entry.IsFolder {
					kind = "folder"
				}
				fmt.Fprintf(out, "%-30s %-6s %s\n", entry.ItemName, kind, permString(entry.Permissions))
			}
			perms := files.SelectedPermissions()
			fmt.Fprintf(out, "\nSelection of %d: readable=%t writable=%t\n", len(sel), perms.Readable, perms.Writable)
			return nil
		},
	}
	return cmd
}
