package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/storage"
)

type StorageConfig struct {
	// EntityPath is the bbolt database holding the live floor graph.
	EntityPath string `json:"entity_path"`

	/* Campaign definitions */
	Rooms     AssetConfig[*game.Room]     `json:"rooms"`
	Locations AssetConfig[*game.Location] `json:"locations"`
	Players   AssetConfig[*game.Player]   `json:"players"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	if c.EntityPath == "" {
		el.Add(fmt.Errorf("entity_path is required"))
	}

	el.Add(c.Rooms.Validate("rooms"))
	el.Add(c.Locations.Validate("locations"))
	el.Add(c.Players.Validate("players"))

	return el.Err()
}

func (c *StorageConfig) buildEntityStore() (*storage.EntityStore, error) {
	return storage.OpenEntityStore(c.EntityPath)
}

// buildCampaign loads the room, location and player definition stores and
// checks that every location references a known room.
func (c *StorageConfig) buildCampaign() (*Campaign, error) {
	rooms, err := c.Rooms.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating room store: %w", err)
	}
	locations, err := c.Locations.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating location store: %w", err)
	}
	players, err := c.Players.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating player store: %w", err)
	}

	for id, loc := range locations.GetAll() {
		if rooms.Get(storage.Identifier(loc.RoomId)) == nil {
			return nil, fmt.Errorf("location %q: unknown room %q", id, loc.RoomId)
		}
	}

	return &Campaign{
		Rooms:     rooms,
		Locations: locations,
		Players:   players,
	}, nil
}

// Campaign bundles the loaded definition stores.
type Campaign struct {
	Rooms     storage.Storer[*game.Room]
	Locations storage.Storer[*game.Location]
	Players   storage.Storer[*game.Player]
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
