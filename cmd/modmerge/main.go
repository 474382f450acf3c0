// Command modmerge is the CLI front end for the merge engine: a command
// table dispatching onto the Orchestrator's events, keyed by verb name.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmerge/modmerge/internal/config"
	"github.com/mmerge/modmerge/internal/console"
	"github.com/mmerge/modmerge/internal/emit"
	"github.com/mmerge/modmerge/internal/model"
	"github.com/mmerge/modmerge/internal/orchestrator"
)

// command is one CLI verb: its minimum argument count and the handler
// that runs against the live orchestrator.
type command struct {
	minArgs int
	usage   string
	run     func(o *orchestrator.Orchestrator, args []string) error
}

var gCommands = map[string]command{
	"pack.add":     {1, "pack.add <path-or-url>", cmdPackAdd},
	"pack.remove":  {1, "pack.remove <index>", cmdPackRemove},
	"pack.reorder": {2, "pack.reorder <index> <up|down>", cmdPackReorder},
	"pack.edit":    {2, "pack.edit <mc-version> <loader>", cmdPackEdit},
	"pack.list":    {0, "pack.list", cmdPackList},
	"analyze.quick": {0, "analyze.quick", cmdAnalyzeQuick},
	"analyze.deep":  {0, "analyze.deep", cmdAnalyzeDeep},
	"issues":        {0, "issues", cmdIssues},
	"emit.full":     {1, "emit.full <output.zip>", cmdEmitFull},
	"emit.index":    {3, "emit.index <output.mrpack> <version-id> <name>", cmdEmitIndex},
}

// printer formats the counters pack.list/analyze.quick/analyze.deep
// report, grounded on the
// same localized-number-formatting role golang.org/x/text/message plays
// wherever the pack surfaces a count to a user.
var printer = message.NewPrinter(language.English)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	cmd, ok := gCommands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	if len(args) < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: modmerge %s\n", cmd.usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		console.Log(model.SeverityDanger, "failed to load config: %v", err)
		os.Exit(1)
	}

	o, err := orchestrator.New(cfg)
	if err != nil {
		console.Log(model.SeverityDanger, "failed to start: %v", err)
		os.Exit(1)
	}
	defer o.Close()

	// Each invocation runs exactly one command against a fresh
	// orchestrator; no pack state is kept between invocations, so a verb
	// other than pack.add starts with no packs loaded.
	if err := cmd.run(o, args); err != nil {
		console.Log(model.SeverityDanger, "%s: %v", name, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: modmerge <command> [args...]")
	for _, c := range gCommands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
}

func cmdPackAdd(o *orchestrator.Orchestrator, args []string) error {
	pathOrURL := args[0]
	var data []byte
	var err error

	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		data, err = fetchURL(pathOrURL)
	} else {
		data, err = os.ReadFile(pathOrURL)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pathOrURL, err)
	}

	name := baseName(pathOrURL)
	if err := o.LoadPack(name, data); err != nil {
		return err
	}
	console.Log(model.SeveritySuccess, "loaded %s", name)
	return nil
}

func fetchURL(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func baseName(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func cmdPackRemove(o *orchestrator.Orchestrator, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	packs := o.Packs()
	if idx < 0 || idx >= len(packs) {
		return fmt.Errorf("index %d out of range (have %d packs)", idx, len(packs))
	}
	return o.RemovePack(packs[idx].ID)
}

func cmdPackReorder(o *orchestrator.Orchestrator, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	dir := 0
	switch args[1] {
	case "up":
		dir = -1
	case "down":
		dir = 1
	default:
		return fmt.Errorf("direction must be 'up' or 'down', got %q", args[1])
	}
	return o.Reorder(idx, dir)
}

func cmdPackEdit(o *orchestrator.Orchestrator, args []string) error {
	return o.EditHeadLoaderOrVersion(args[0], model.Loader(args[1]))
}

func cmdPackList(o *orchestrator.Orchestrator, _ []string) error {
	packs := o.Packs()
	printer.Printf("%d pack(s) loaded\n", len(packs))
	for i, p := range packs {
		age := timeago.English.Format(p.LoadedAt)
		fmt.Printf("  [%d] %-20s %s / %-10s loaded %s\n", i, p.Name, p.MinecraftVersion, p.Loader, age)
	}
	return nil
}

func cmdAnalyzeQuick(o *orchestrator.Orchestrator, _ []string) error {
	o.RequestQuickAnalysis()
	printer.Printf("quick analysis: %d conflict(s), %d compatibility issue(s)\n",
		len(o.Conflicts), len(o.CompatIssues))
	return nil
}

func cmdAnalyzeDeep(o *orchestrator.Orchestrator, _ []string) error {
	if err := o.RequestDeepAnalysis(); err != nil {
		return err
	}
	printer.Printf("deep analysis: %d conflict(s), %d dependency issue(s)\n",
		len(o.Conflicts), len(o.DepIssues))
	return nil
}

func cmdIssues(o *orchestrator.Orchestrator, _ []string) error {
	for _, c := range o.CompatIssues {
		console.Log(c.Severity, "%s", c.Message)
	}
	for _, d := range o.DepIssues {
		switch d.Kind {
		case model.DependencyMissing:
			console.Log(model.SeverityWarning, "%s requires %s %s (missing)", d.RequiredBy, d.ModID, d.RequiredRange)
		case model.DependencyOutdated:
			console.Log(model.SeverityWarning, "%s requires %s %s, found %s", d.RequiredBy, d.ModID, d.RequiredRange, d.PresentVersion)
		case model.DependencyCycle:
			console.Log(model.SeverityWarning, "%s", d.Message)
		}
	}
	return nil
}

func cmdEmitFull(o *orchestrator.Orchestrator, args []string) error {
	data, err := o.RequestEmit(emit.ModeFullArchive, "", "")
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	console.Log(model.SeveritySuccess, "wrote %s", args[0])
	return nil
}

func cmdEmitIndex(o *orchestrator.Orchestrator, args []string) error {
	data, err := o.RequestEmit(emit.ModeIndexDescriptor, args[1], args[2])
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	console.Log(model.SeveritySuccess, "wrote %s", args[0])
	return nil
}
