package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"meal-planner/internal/app"
	"meal-planner/internal/apperr"
	"meal-planner/internal/clipper"
	"meal-planner/internal/config"
	"meal-planner/internal/images"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/preferences"
	"meal-planner/internal/telegram"
	"meal-planner/internal/week"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		fmt.Fprintln(os.Stderr, apperr.UserMessage(err))
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "serve":
		err := a.Server().ListenAndServe(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case "rollover":
		report, err := a.Rollover.Run(ctx)
		if err != nil {
			return err
		}
		if report.AlreadyExists {
			fmt.Printf("Plan for %s already exists.\n", report.WeekID)
			return nil
		}
		fmt.Printf("Plan for %s generated for %s: %d recipes, %d shopping items, synced=%t.\n",
			report.WeekID, report.UserID, report.RecipesCreated, report.ShoppingItems, report.Synced)
		return nil

	case "generate":
		fs := flag.NewFlagSet("generate", flag.ExitOnError)
		weekFlag := fs.String("week", "", "Week id (YYYY-Www); defaults to next week")
		user := fs.String("user", a.Config.Rollover.SystemUserID, "Owner of the plan")
		portions := fs.Int("portions", 0, "Portions per meal; defaults to the user's preferences")
		preserve := fs.Bool("preserve-locked", false, "Keep locked slots of the existing plan")
		_ = fs.Parse(args)

		weekID, err := weekOrDefault(*weekFlag, week.Next(time.Now()))
		if err != nil {
			return err
		}
		if *portions == 0 {
			*portions = portionsFor(ctx, a, *user)
		}
		titles, err := a.Recipes.RecentTitles(ctx, *user, a.Config.Rollover.RecentTitles)
		if err != nil {
			a.Logger.Warn("could not load recent titles", "error", err)
		}

		res, err := a.Generator.Generate(ctx, planner.GenerateRequest{
			WeekID:         weekID,
			UserID:         *user,
			Portions:       *portions,
			RecentTitles:   titles,
			PreserveLocked: *preserve,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Generated %d recipes (%d without image).\n\n", res.RecipesCreated, res.ImagesMissing)
		return printPlan(ctx, a, res.Plan)

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		weekFlag := fs.String("week", "", "Week id (YYYY-Www); defaults to this week")
		_ = fs.Parse(args)

		weekID, err := weekOrDefault(*weekFlag, week.Of(time.Now()))
		if err != nil {
			return err
		}
		plan, err := a.Plans.Get(ctx, weekID)
		if err != nil {
			return err
		}
		return printPlan(ctx, a, plan)

	case "swap", "lock", "clear":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		weekFlag := fs.String("week", "", "Week id (YYYY-Www); defaults to this week")
		dayFlag := fs.String("day", "", "Day of the week, e.g. monday")
		mealFlag := fs.String("meal", "", "breakfast, lunch or dinner")
		current := fs.String("current", "", "Title of the meal being replaced (swap only)")
		_ = fs.Parse(args)

		weekID, err := weekOrDefault(*weekFlag, week.Of(time.Now()))
		if err != nil {
			return err
		}
		day, err := planner.ParseDay(*dayFlag)
		if err != nil {
			return err
		}
		meal, err := planner.ParseMealType(*mealFlag)
		if err != nil {
			return err
		}

		switch cmd {
		case "swap":
			res, err := a.Swapper.Swap(ctx, planner.SwapRequest{WeekID: weekID, Day: day, MealType: meal, CurrentTitle: *current})
			if err != nil {
				return err
			}
			fmt.Printf("%s %s is now: %s\n", day, meal, res.Title)
		case "lock":
			locked, err := a.Plans.ToggleLock(ctx, weekID, day, meal)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s locked=%t\n", day, meal, locked)
		case "clear":
			if err := a.Plans.ClearMeal(ctx, weekID, day, meal); err != nil {
				return err
			}
			fmt.Printf("%s %s is now a free meal.\n", day, meal)
		}
		return nil

	case "shopping":
		fs := flag.NewFlagSet("shopping", flag.ExitOnError)
		weekFlag := fs.String("week", "", "Week id (YYYY-Www); defaults to this week")
		_ = fs.Parse(args)

		weekID, err := weekOrDefault(*weekFlag, week.Of(time.Now()))
		if err != nil {
			return err
		}
		res, err := a.Aggregator.Generate(ctx, weekID)
		if err != nil {
			return err
		}
		for _, item := range res.List.Items {
			fmt.Printf("[%s] %s %s\n", item.Category, item.Quantity, item.Name)
		}
		if res.Skipped > 0 {
			fmt.Printf("\n%d recipes could not be read.\n", res.Skipped)
		}
		return nil

	case "sync":
		fs := flag.NewFlagSet("sync", flag.ExitOnError)
		weekFlag := fs.String("week", "", "Week id (YYYY-Www); defaults to this week")
		_ = fs.Parse(args)

		if a.Syncer == nil {
			return errors.New("bring is not configured (BRING_EMAIL)")
		}
		weekID, err := weekOrDefault(*weekFlag, week.Of(time.Now()))
		if err != nil {
			return err
		}
		listID, err := a.Syncer.Push(ctx, weekID)
		if err != nil {
			return err
		}
		fmt.Printf("Shopping list %s synced to Bring! list %s.\n", weekID, listID)
		return nil

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		pageURL := fs.String("url", "", "Page with the recipe")
		user := fs.String("user", a.Config.Rollover.SystemUserID, "Owner of the recipe")
		portions := fs.Int("portions", 0, "Portions; defaults to the user's preferences")
		_ = fs.Parse(args)

		if *portions == 0 {
			*portions = portionsFor(ctx, a, *user)
		}
		rec, err := a.Clipper.Import(ctx, clipper.ImportRequest{URL: *pageURL, UserID: *user, Portions: *portions})
		if err != nil {
			return err
		}
		fmt.Printf("Imported '%s' (%s) as %s.\n", rec.Title, rec.ID, rec.MealType)
		return nil

	case "backfill-images":
		fs := flag.NewFlagSet("backfill-images", flag.ExitOnError)
		limit := fs.Int("limit", 50, "Maximum number of recipes to check")
		_ = fs.Parse(args)

		res, err := images.Backfill(ctx, a.Recipes, a.Images, *limit, a.Config.Images.Concurrency, a.Logger)
		if err != nil {
			return err
		}
		fmt.Printf("Found images for %d of %d recipes.\n", res.Found, res.Checked)
		return nil

	case "preferences":
		fs := flag.NewFlagSet("preferences", flag.ExitOnError)
		user := fs.String("user", "", "User id")
		portions := fs.Int("portions", a.Config.Rollover.DefaultPortions, "Portions per meal")
		_ = fs.Parse(args)

		if err := a.Preferences.Save(ctx, preferences.Preferences{UserID: *user, Portions: *portions}); err != nil {
			return err
		}
		fmt.Printf("Saved preferences for %s: %d portions.\n", *user, *portions)
		return nil

	case "metrics":
		fs := flag.NewFlagSet("metrics", flag.ExitOnError)
		days := fs.Int("days", 7, "Number of days to report")
		notify := fs.Bool("notify", false, "Also send the report to the Telegram admin chat")
		_ = fs.Parse(args)

		usage, err := a.Metrics.GetDailyUsage(ctx, *days)
		if err != nil {
			return err
		}
		health := metrics.GetSysHealth(filepath.Dir(a.Config.DatabasePath))
		fmt.Println(telegram.FormatUsageReport(usage, health))

		if *notify {
			if a.Notifier == nil {
				return errors.New("telegram is not configured (TELEGRAM_BOT_TOKEN, TELEGRAM_ADMIN_CHAT_ID)")
			}
			return a.Notifier.NotifyUsage(ctx, usage, health)
		}
		return nil

	case "metrics-cleanup":
		fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := fs.Int("days", 30, "Keep records for the last N days")
		_ = fs.Parse(args)

		affected, err := a.Metrics.Cleanup(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func weekOrDefault(s string, fallback week.ID) (week.ID, error) {
	if s == "" {
		return fallback, nil
	}
	return week.Parse(s)
}

func portionsFor(ctx context.Context, a *app.App, userID string) int {
	prefs, err := a.Preferences.Get(ctx, userID)
	if err != nil || prefs.Portions < 1 {
		return a.Config.Rollover.DefaultPortions
	}
	return prefs.Portions
}

func printPlan(ctx context.Context, a *app.App, plan *planner.WeeklyPlan) error {
	fmt.Printf("=== WEEKLY MEAL PLAN %s (%d portions) ===\n", plan.WeekID, plan.Portions)
	for _, day := range planner.Days {
		fmt.Printf("%s\n", day)
		for _, meal := range planner.MealTypes {
			slot, ok := plan.Meals.Slot(day, meal)
			title := "-"
			if ok && !slot.IsFree() {
				rec, err := a.Recipes.Get(ctx, slot.RecipeID)
				if err != nil {
					return err
				}
				title = rec.Title
			}
			lock := ""
			if slot.Locked {
				lock = " [locked]"
			}
			fmt.Printf("  %-10s %s%s\n", meal, title, lock)
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: meal-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve              Run the HTTP server")
	fmt.Println("  rollover           Make sure next week has a plan (scheduled job)")
	fmt.Println("  generate           Generate a weekly plan")
	fmt.Println("  show               Print a weekly plan")
	fmt.Println("  swap               Replace one meal")
	fmt.Println("  lock               Toggle the lock of one meal")
	fmt.Println("  clear              Turn one meal into a free meal")
	fmt.Println("  shopping           Build the shopping list of a week")
	fmt.Println("  sync               Push a shopping list to Bring!")
	fmt.Println("  import             Import a recipe from a web page")
	fmt.Println("  backfill-images    Retry image lookup for recipes without one")
	fmt.Println("  preferences        Save a user's household settings")
	fmt.Println("  metrics            Print AI usage and system health")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
