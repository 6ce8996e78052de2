// Command admin manages categories and locations of the blog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"blogicum/internal/cache"
	"blogicum/internal/config"
	"blogicum/internal/database"
	"blogicum/internal/models"
	"blogicum/internal/repository"

	"github.com/fatih/color"
)

const usageText = `Usage:
  go run ./cmd/admin category add <slug> <title> [description]  - Create an unpublished category
  go run ./cmd/admin category publish <slug>                     - Show a category and its posts
  go run ./cmd/admin category unpublish <slug>                   - Hide a category and its posts
  go run ./cmd/admin category list                               - List all categories
  go run ./cmd/admin location add <name>                         - Create a published location
  go run ./cmd/admin location publish <id>                       - Publish a location
  go run ./cmd/admin location unpublish <id>                     - Hide a location
  go run ./cmd/admin location list                               - List all locations`

var errUsage = errors.New("invalid arguments")

func main() {
	if len(os.Args) < 3 {
		fmt.Println(usageText)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Redis only matters here for dropping cached category lookups.
	cache.InitRedis(cfg.RedisURL)

	a := &admin{
		categories: repository.NewCategoryRepository(db, cache.GetClient()),
		locations:  repository.NewLocationRepository(db),
		out:        os.Stdout,
	}
	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(usageText)
		} else {
			fmt.Println(color.RedString("❌ %v", err))
		}
		os.Exit(1)
	}
}

type admin struct {
	categories repository.CategoryRepository
	locations  repository.LocationRepository
	out        io.Writer
}

func (a *admin) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	switch args[0] {
	case "category":
		return a.category(ctx, args[1], args[2:])
	case "location":
		return a.location(ctx, args[1], args[2:])
	default:
		return errUsage
	}
}

func (a *admin) category(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add":
		if len(args) < 2 {
			return errUsage
		}
		c := &models.Category{
			Slug:        args[0],
			Title:       args[1],
			Description: strings.Join(args[2:], " "),
		}
		if err := a.categories.Create(ctx, c); err != nil {
			return err
		}
		a.success("Created category %s (ID: %d), unpublished", c.Slug, c.ID)
	case "publish", "unpublish":
		if len(args) < 1 {
			return errUsage
		}
		if err := a.categories.SetPublished(ctx, args[0], cmd == "publish"); err != nil {
			return err
		}
		a.success("Category %s %sed", args[0], cmd)
	case "list":
		categories, err := a.categories.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSLUG\tTITLE\tSTATE")
		for _, c := range categories {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Slug, c.Title, state(c.IsPublished))
		}
		return w.Flush()
	default:
		return errUsage
	}
	return nil
}

func (a *admin) location(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add":
		if len(args) < 1 {
			return errUsage
		}
		l := &models.Location{Name: strings.Join(args, " "), IsPublished: true}
		if err := a.locations.Create(ctx, l); err != nil {
			return err
		}
		a.success("Created location %s (ID: %d)", l.Name, l.ID)
	case "publish", "unpublish":
		if len(args) < 1 {
			return errUsage
		}
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid location id %q", args[0])
		}
		if err := a.locations.SetPublished(ctx, uint(id), cmd == "publish"); err != nil {
			return err
		}
		a.success("Location %d %sed", id, cmd)
	case "list":
		locations, err := a.locations.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATE")
		for _, l := range locations {
			fmt.Fprintf(w, "%d\t%s\t%s\n", l.ID, l.Name, state(l.IsPublished))
		}
		return w.Flush()
	default:
		return errUsage
	}
	return nil
}

func (a *admin) success(format string, args ...any) {
	fmt.Fprintln(a.out, color.GreenString("✅ "+format, args...))
}

func state(published bool) string {
	if published {
		return color.GreenString("published")
	}
	return color.YellowString("hidden")
}
