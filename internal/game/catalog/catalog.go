package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Card is the immutable definition of a unit that can be dealt into a hand.
type Card struct {
	Name     string `yaml:"name"`
	Health   int    `yaml:"health"`
	Attack   int    `yaml:"attack"`
	ManaCost int    `yaml:"mana_cost"`
}

// DeckFile represents the top-level YAML structure.
type DeckFile struct {
	Cards []Card      `yaml:"cards"`
	Decks []DeckEntry `yaml:"decks"`
}

// DeckEntry represents a single named deck in the YAML file.
type DeckEntry struct {
	Name  string      `yaml:"name"`
	Cards []CardEntry `yaml:"cards"`
}

// CardEntry represents a card and its count in a deck.
type CardEntry struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// Catalog is a read-only set of card definitions and named decks.
type Catalog struct {
	cards map[string]Card
	decks map[string][]string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var df DeckFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	c := &Catalog{
		cards: make(map[string]Card, len(df.Cards)),
		decks: make(map[string][]string, len(df.Decks)),
	}

	for _, card := range df.Cards {
		card.Name = strings.TrimSpace(card.Name)
		if err := validateCard(card); err != nil {
			return nil, err
		}
		key := normalize(card.Name)
		if _, exists := c.cards[key]; exists {
			return nil, fmt.Errorf("duplicate card %q", card.Name)
		}
		c.cards[key] = card
	}

	for _, deck := range df.Decks {
		name := strings.TrimSpace(deck.Name)
		if name == "" {
			return nil, fmt.Errorf("deck without a name")
		}
		var names []string
		for _, entry := range deck.Cards {
			if _, ok := c.cards[normalize(entry.Name)]; !ok {
				return nil, fmt.Errorf("deck %q references unknown card %q", name, entry.Name)
			}
			if entry.Count < 1 {
				return nil, fmt.Errorf("deck %q: card %q has count %d", name, entry.Name, entry.Count)
			}
			for i := 0; i < entry.Count; i++ {
				names = append(names, entry.Name)
			}
		}
		c.decks[normalize(name)] = names
	}

	return c, nil
}

func validateCard(card Card) error {
	if card.Name == "" {
		return fmt.Errorf("card without a name")
	}
	if card.Health <= 0 {
		return fmt.Errorf("card %q: health must be positive, got %d", card.Name, card.Health)
	}
	if card.Attack < 0 {
		return fmt.Errorf("card %q: attack must not be negative, got %d", card.Name, card.Attack)
	}
	if card.ManaCost < 0 {
		return fmt.Errorf("card %q: mana cost must not be negative, got %d", card.Name, card.ManaCost)
	}
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the card with the given name (case-insensitive).
func (c *Catalog) Lookup(name string) (Card, bool) {
	card, ok := c.cards[normalize(name)]
	return card, ok
}

// Cards resolves names to cards in order.
func (c *Catalog) Cards(names []string) ([]Card, error) {
	cards := make([]Card, 0, len(names))
	for _, name := range names {
		card, ok := c.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown card %q", name)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Deck returns the ordered cards of a named deck.
func (c *Catalog) Deck(name string) ([]Card, error) {
	names, ok := c.decks[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("deck %q not found", name)
	}
	return c.Cards(names)
}

// All returns every card sorted by name.
func (c *Catalog) All() []Card {
	cards := make([]Card, 0, len(c.cards))
	for _, card := range c.cards {
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards
}

// DeckNames returns the names of all decks, sorted.
func (c *Catalog) DeckNames() []string {
	names := make([]string, 0, len(c.decks))
	for name := range c.decks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
