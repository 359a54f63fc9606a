package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/orian/promptlib/library"
	"github.com/orian/promptlib/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	listQuery         string
	listAxis          string
	listPrimary       string
	listSecondary     string
	listTags          []string
	listFavoritesOnly bool
	listPage          int
	listPageSize      int
	listWidth         int

	exportOutput  string
	generateCount int
	clearYes      bool
	eventsLimit   int
)

// listCmd renders the current page of the library
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the current page of prompts",
	Long: `Applies the given filters to the saved browsing state and renders the
resulting page as cards. Filters not given keep their saved values.

Example:
  promptlib list --axis theme --primary Marketing --tag email`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the library with a JSON file (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the library as indented JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Append synthetic prompts drawn from the current axis values",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every prompt (favorites are kept)",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite ID",
	Short: "Toggle the favorite flag of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavorite,
}

var similarCmd = &cobra.Command{
	Use:   "similar ID",
	Short: "Show prompts with the same persona and theme as ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent imports, generations and clears",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	f := listCmd.Flags()
	f.StringVarP(&listQuery, "query", "q", "", "Free-text search")
	f.StringVar(&listAxis, "axis", "", "Primary axis: persona, theme or postType")
	f.StringVar(&listPrimary, "primary", "", "Value on the primary axis (all for no filter)")
	f.StringVar(&listSecondary, "secondary", "", "Value on the secondary axis (all for no filter)")
	f.StringSliceVarP(&listTags, "tag", "t", nil, "Replace the tag filters (repeatable)")
	f.BoolVar(&listFavoritesOnly, "favorites", false, "Only show favorites")
	f.IntVarP(&listPage, "page", "p", 0, "Page number")
	f.IntVar(&listPageSize, "page-size", 0, "Cards per page")
	f.IntVar(&listWidth, "width", 72, "Card width in columns (0 for no limit)")

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "Output file, - for stdout")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", library.DefaultGenerate, "Number of prompts to generate (1-1000)")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm removing every prompt")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", defaultEventLimit, "Maximum number of events (0 for all)")

	rootCmd.AddCommand(listCmd, importCmd, exportCmd, generateCmd, clearCmd, favoriteCmd, similarCmd, eventsCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	v, err := applyListFlags(cmd, controller)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), RenderView(v, listWidth))
	return nil
}

// applyListFlags applies the flags the user set, axis first since it
// resets both selections and page last since every filter resets it.
func applyListFlags(cmd *cobra.Command, c *library.Controller) (library.View, error) {
	ctx := cmd.Context()
	flags := cmd.Flags()

	var steps []func() (library.View, error)
	if flags.Changed("axis") {
		steps = append(steps, func() (library.View, error) { return c.SetAxis(ctx, models.Axis(listAxis)) })
	}
	if flags.Changed("primary") {
		steps = append(steps, func() (library.View, error) { return c.SetPrimary(ctx, listPrimary) })
	}
	if flags.Changed("secondary") {
		steps = append(steps, func() (library.View, error) { return c.SetSecondary(ctx, listSecondary) })
	}
	if flags.Changed("query") {
		steps = append(steps, func() (library.View, error) { return c.SetQuery(ctx, listQuery) })
	}
	if flags.Changed("tag") {
		for _, tag := range c.State().TagFilters {
			steps = append(steps, func() (library.View, error) { return c.RemoveTag(ctx, tag) })
		}
		for _, tag := range listTags {
			steps = append(steps, func() (library.View, error) { return c.AddTag(ctx, tag) })
		}
	}
	if flags.Changed("favorites") {
		steps = append(steps, func() (library.View, error) { return c.SetFavoritesOnly(ctx, listFavoritesOnly) })
	}
	if flags.Changed("page-size") {
		steps = append(steps, func() (library.View, error) { return c.SetPageSize(ctx, listPageSize) })
	}
	if flags.Changed("page") {
		steps = append(steps, func() (library.View, error) { return c.GoToPage(ctx, listPage) })
	}

	v := c.View()
	for _, step := range steps {
		var err error
		if v, err = step(); err != nil {
			return v, err
		}
	}
	return v, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	_, n, err := controller.Import(ctx, data, models.EventImport)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d prompts\n", n)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	data, err := controller.Export()
	if err != nil {
		return err
	}

	if exportOutput == "-" {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	log.Info().Str("path", exportOutput).Int("count", controller.Store().Len()).Msg("Exported prompts")
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	v, n, err := controller.Generate(ctx, generateCount, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d prompts (%d total)\n", n, v.Total)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return errors.New("refusing to clear the library without --yes")
	}

	ctx := cmd.Context()
	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	removed := controller.Store().Len()
	if _, err := controller.Clear(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d prompts, favorites kept\n", removed)
	return nil
}

func runFavorite(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	favorite, _, err := controller.ToggleFavorite(ctx, id)
	if err != nil {
		return err
	}

	if favorite {
		fmt.Fprintf(cmd.OutOrStdout(), "Prompt %d is now a favorite\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Prompt %d is no longer a favorite\n", id)
	}
	return nil
}

func runSimilar(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	v, err := controller.FocusSimilar(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), RenderView(v, listWidth))
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storage.Close()

	events, err := storage.ListEvents(ctx, eventsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(out, "%s  %-12s %6d  %s\n", e.CreatedAt.Format(time.DateTime), e.Kind, e.Count, e.ID)
	}
	return nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid prompt id %q", raw)
	}
	return id, nil
}
