// Package eco names the opening a game was played from, using ECO
// (Encyclopedia of Chess Openings) TSV tables.
package eco

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// Opening is an ECO classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
	Ply  int    `json:"ply"` // length of the opening line in half-moves
}

// Book indexes openings by the position their main line reaches.
type Book struct {
	byPosition map[pgn.PackedPosition]Opening
	maxPly     int
	skipped    int
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		byPosition: make(map[pgn.PackedPosition]Opening),
	}
}

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// LoadDir loads every .tsv file in dir.
func (b *Book) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := b.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file.
func (b *Book) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Load(f)
}

// Load reads "eco\tname\tpgn" lines. A header line is skipped, as are lines
// whose moves do not parse.
func (b *Book) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		pos := pgn.NewStartingPosition()
		ply, err := applySAN(pos, parts[2])
		if err != nil {
			b.skipped++
			continue
		}

		b.byPosition[pos.Pack()] = Opening{ECO: parts[0], Name: parts[1], Ply: ply}
		if ply > b.maxPly {
			b.maxPly = ply
		}
	}

	return scanner.Err()
}

// applySAN plays movetext like "1. e4 e5 2. Nf3 Nc6" and returns the
// number of half-moves applied.
func applySAN(pos *pgn.GameState, movetext string) (int, error) {
	cleaned := moveNumberRegex.ReplaceAllString(movetext, "")
	ply := 0

	for _, san := range strings.Fields(cleaned) {
		if san[0] == '$' || san[0] == '{' {
			continue
		}
		san = strings.TrimRight(san, "+#")

		mv, err := pgn.ParseSAN(pos, san)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", san, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return 0, fmt.Errorf("apply %q: %w", san, err)
		}
		ply++
	}
	return ply, nil
}

// Lookup returns the opening whose line ends in pos, or nil.
func (b *Book) Lookup(pos *pgn.GameState) *Opening {
	if o, ok := b.byPosition[pos.Pack()]; ok {
		return &o
	}
	return nil
}

// Classify plays moves from the starting position and returns the last
// (deepest) opening the game passed through, or nil if none matched.
// Moves past the longest book line are not examined.
func (b *Book) Classify(moves []pgn.Mv) *Opening {
	if b == nil || len(b.byPosition) == 0 {
		return nil
	}

	var found *Opening
	pos := pgn.NewStartingPosition()
	for i, mv := range moves {
		if i >= b.maxPly {
			break
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			break
		}
		if o := b.Lookup(pos); o != nil {
			found = o
		}
	}
	return found
}

// Count returns the number of distinct opening positions loaded.
func (b *Book) Count() int {
	return len(b.byPosition)
}

// Skipped returns how many lines failed to parse.
func (b *Book) Skipped() int {
	return b.skipped
}
