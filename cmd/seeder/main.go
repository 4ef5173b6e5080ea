package main

import (
	"bufio"
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"

	"github.com/somnolabs/oneiro"
	"github.com/somnolabs/oneiro/core"
)

// builtinThemes is a small starter catalog. Each description is embedded
// and stored as the theme's reference vector.
var builtinThemes = []struct {
	code        string
	label       string
	description string
}{
	{"falling", "Falling", "Falling from a great height, losing balance, plummeting through the air, the ground rushing up."},
	{"flying", "Flying", "Flying or floating above the ground, soaring over landscapes, weightlessness and freedom of movement."},
	{"pursuit", "Being Chased", "Being chased or pursued by a person, animal or unseen presence, running away, hiding from a threat."},
	{"water", "Water", "Oceans, rivers, floods, drowning, swimming, rain, being submerged or carried by water."},
	{"teeth", "Losing Teeth", "Teeth crumbling, falling out or breaking, spitting out teeth, a loose tooth that will not stay in."},
	{"exam", "Unprepared Exam", "Sitting an exam without having studied, arriving late to a test, forgetting everything one knew."},
	{"lost", "Being Lost", "Being lost in an unfamiliar city or building, endless corridors, unable to find the way home."},
	{"death", "Death", "Dying, the death of a loved one, funerals, graveyards, speaking with the dead."},
	{"nakedness", "Public Nakedness", "Being naked or underdressed in public, sudden embarrassment, others noticing or not noticing."},
	{"house", "Unknown Rooms", "Discovering new rooms in a familiar house, doors that were never there, shifting architecture."},
}

// builtinFragments is a starter interpretation library with precomputed
// theme associations.
var builtinFragments = []struct {
	text   string
	source string
	scope  string
	links  map[string]float32
}{
	{
		"Falling dreams frequently coincide with periods of perceived loss of control in waking life, such as job insecurity or relationship uncertainty.",
		"interpretation-handbook", "symbolism",
		map[string]float32{"falling": 0.92},
	},
	{
		"The hypnic jerk, a startle reflex during sleep onset, is the physiological trigger for many falling sensations reported by dreamers.",
		"sleep-primer", "physiology",
		map[string]float32{"falling": 0.71},
	},
	{
		"Flight in dreams is widely associated with feelings of mastery, ambition and escape from constraint.",
		"interpretation-handbook", "symbolism",
		map[string]float32{"flying": 0.9},
	},
	{
		"Pursuit dreams tend to recur during prolonged stress; the pursuer often personifies an avoided obligation or emotion.",
		"interpretation-handbook", "symbolism",
		map[string]float32{"pursuit": 0.88},
	},
	{
		"Calm water tends to accompany emotional equilibrium in dream reports, while turbulent or rising water accompanies feelings of being overwhelmed.",
		"interpretation-handbook", "symbolism",
		map[string]float32{"water": 0.9},
	},
	{
		"Dreams of losing teeth are among the most commonly reported motifs worldwide and are often linked to anxiety about appearance or communication.",
		"survey-2019", "symbolism",
		map[string]float32{"teeth": 0.93},
	},
	{
		"The unprepared-exam dream persists for decades after formal schooling ends, typically resurfacing before evaluative life events.",
		"survey-2019", "symbolism",
		map[string]float32{"exam": 0.91},
	},
	{
		"Discovering unknown rooms in a familiar house is commonly read as encountering unacknowledged aspects of the self.",
		"interpretation-handbook", "symbolism",
		map[string]float32{"house": 0.89, "lost": 0.44},
	},
	{
		"Dreams of death rarely concern literal mortality; they more often mark the end of a life phase or relationship.",
		"interpretation-handbook", "symbolism",
		map[string]float32{"death": 0.9},
	},
	{
		"REM density increases across the night, which is why emotionally intense dream narratives cluster in the hours before waking.",
		"sleep-primer", "physiology",
		map[string]float32{},
	},
}

var (
	dbPath     = flag.String("db", "./oneiro_db", "path to BadgerDB database directory")
	dreamsFile = flag.String("dreams", "", "optional file of dream transcripts to submit, one per line")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

func seedThemes(ctx context.Context, db *oneiro.Database) error {
	themes := make([]core.Theme, 0, len(builtinThemes))
	for _, t := range builtinThemes {
		vector, err := db.Embedder().EmbedText(ctx, t.description)
		if err != nil {
			return err
		}
		themes = append(themes, core.Theme{
			Code:   t.code,
			Label:  t.label,
			Vector: vector,
		})
		slog.Info("embedded theme", "code", t.code)
	}
	return db.ThemeStore().PutThemes(ctx, themes...)
}

func seedFragments(ctx context.Context, db *oneiro.Database) error {
	var links []core.FragmentLink
	for _, f := range builtinFragments {
		vector, err := db.Embedder().EmbedText(ctx, f.text)
		if err != nil {
			return err
		}

		fragment := &core.Fragment{
			Text:   f.text,
			Source: f.source,
			Scope:  f.scope,
			Vector: vector,
		}
		if err := db.FragmentStore().PutFragments(ctx, fragment); err != nil {
			return err
		}
		slog.Info("stored fragment", "id", fragment.Id, "source", f.source)

		for code, score := range f.links {
			links = append(links, core.FragmentLink{
				FragmentId: fragment.Id,
				ThemeCode:  code,
				Score:      score,
			})
		}
	}
	if len(links) == 0 {
		return nil
	}
	return db.FragmentStore().PutLinks(ctx, links...)
}

func submitDreams(ctx context.Context, db *oneiro.Database, source iter.Seq[string]) error {
	for line := range source {
		if line == "" {
			continue
		}
		dream, err := db.Submit(ctx, line, 0)
		if err != nil {
			slog.Warn("skipping transcript", "err", err)
			continue
		}
		slog.Info("submitted dream", "id", dream.Id)
	}
	return nil
}

func main() {
	db, err := oneiro.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()

	if err := seedThemes(ctx, db); err != nil {
		panic(err)
	}
	if err := seedFragments(ctx, db); err != nil {
		panic(err)
	}

	if *dreamsFile != "" {
		source, err := linesFromFile(*dreamsFile)
		if err != nil {
			panic(err)
		}
		if err := submitDreams(ctx, db, source); err != nil {
			panic(err)
		}
	}
}
