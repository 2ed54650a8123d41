package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/pixil98/go-vtt/internal/game"
)

var (
	bucketRooms  = []byte("rooms")
	bucketLayers = []byte("layers")
	keyMeta      = []byte("meta")
)

// EntityStore persists the live floor graph in bbolt. Floors are nested
// buckets under rooms/<room>/<location>, so deleting a floor drops its meta
// and every owned layer in one transaction.
type EntityStore struct {
	db *bbolt.DB
}

// FloorSpec carries the client-supplied fields for a new floor.
type FloorSpec struct {
	Name          string `json:"name"`
	PlayerVisible bool   `json:"player_visible"`
}

// OpenEntityStore opens or creates the bbolt database and ensures the root
// bucket exists.
func OpenEntityStore(path string) (*EntityStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening entity store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRooms)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating root bucket: %w", err)
	}

	return &EntityStore{db: db}, nil
}

func (s *EntityStore) Close() error {
	return s.db.Close()
}

// CreateFloor appends a floor to the location's ordered floor sequence and
// seeds it with the default layer set. Fails with game.ErrDuplicateFloor if
// a sibling floor already has the spec's name.
func (s *EntityStore) CreateFloor(roomId, locationId Identifier, spec FloorSpec) (*game.Floor, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("floor name is required")
	}

	floor := &game.Floor{
		Name:          spec.Name,
		PlayerVisible: spec.PlayerVisible,
		Layers:        game.DefaultLayers(),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		lb, err := locationBucket(tx, roomId, locationId, true)
		if err != nil {
			return err
		}

		if lb.Bucket([]byte(spec.Name)) != nil {
			return game.ErrDuplicateFloor
		}

		pos, err := lb.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating floor position: %w", err)
		}
		floor.Position = pos

		fb, err := lb.CreateBucket([]byte(spec.Name))
		if err != nil {
			return fmt.Errorf("creating floor bucket: %w", err)
		}

		if err := putFloorMeta(fb, floor); err != nil {
			return err
		}

		layers, err := fb.CreateBucket(bucketLayers)
		if err != nil {
			return fmt.Errorf("creating layer bucket: %w", err)
		}
		for i, l := range floor.Layers {
			data, err := json.Marshal(l)
			if err != nil {
				return fmt.Errorf("encoding layer %q: %w", l.Name, err)
			}
			if err := layers.Put(itob(uint64(i)), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return floor, nil
}

// FindFloor looks a floor up by name within a location.
func (s *EntityStore) FindFloor(roomId, locationId Identifier, name string) (*game.Floor, error) {
	var floor *game.Floor

	err := s.db.View(func(tx *bbolt.Tx) error {
		fb, err := floorBucket(tx, roomId, locationId, name)
		if err != nil {
			return err
		}

		floor, err = readFloor(fb)
		return err
	})
	if err != nil {
		return nil, err
	}

	return floor, nil
}

// Floors returns every floor in the location in creation order.
func (s *EntityStore) Floors(roomId, locationId Identifier) ([]*game.Floor, error) {
	var floors []*game.Floor

	err := s.db.View(func(tx *bbolt.Tx) error {
		lb, err := locationBucket(tx, roomId, locationId, false)
		if err != nil || lb == nil {
			return err
		}

		return lb.ForEachBucket(func(name []byte) error {
			floor, err := readFloor(lb.Bucket(name))
			if err != nil {
				return err
			}
			floors = append(floors, floor)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(floors, func(i, j int) bool {
		return floors[i].Position < floors[j].Position
	})
	return floors, nil
}

// DeleteFloor removes the floor and every layer it owns in one transaction.
func (s *EntityStore) DeleteFloor(roomId, locationId Identifier, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		lb, err := locationBucket(tx, roomId, locationId, false)
		if err != nil {
			return err
		}
		if lb == nil || lb.Bucket([]byte(name)) == nil {
			return game.ErrFloorNotFound
		}

		// DeleteBucket cascades over nested buckets.
		if err := lb.DeleteBucket([]byte(name)); err != nil {
			return fmt.Errorf("deleting floor %q: %w", name, err)
		}
		return nil
	})
}

// SetFloorVisibility updates the floor's player_visible flag and persists it.
func (s *EntityStore) SetFloorVisibility(roomId, locationId Identifier, name string, visible bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		fb, err := floorBucket(tx, roomId, locationId, name)
		if err != nil {
			return err
		}

		floor := &game.Floor{}
		if err := json.Unmarshal(fb.Get(keyMeta), floor); err != nil {
			return fmt.Errorf("decoding floor %q: %w", name, err)
		}

		floor.PlayerVisible = visible
		return putFloorMeta(fb, floor)
	})
}

func locationBucket(tx *bbolt.Tx, roomId, locationId Identifier, create bool) (*bbolt.Bucket, error) {
	rooms := tx.Bucket(bucketRooms)

	if create {
		rb, err := rooms.CreateBucketIfNotExists([]byte(roomId))
		if err != nil {
			return nil, fmt.Errorf("creating room bucket %q: %w", roomId, err)
		}
		lb, err := rb.CreateBucketIfNotExists([]byte(locationId))
		if err != nil {
			return nil, fmt.Errorf("creating location bucket %q: %w", locationId, err)
		}
		return lb, nil
	}

	rb := rooms.Bucket([]byte(roomId))
	if rb == nil {
		return nil, nil
	}
	return rb.Bucket([]byte(locationId)), nil
}

func floorBucket(tx *bbolt.Tx, roomId, locationId Identifier, name string) (*bbolt.Bucket, error) {
	lb, err := locationBucket(tx, roomId, locationId, false)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, game.ErrFloorNotFound
	}

	fb := lb.Bucket([]byte(name))
	if fb == nil {
		return nil, game.ErrFloorNotFound
	}
	return fb, nil
}

func putFloorMeta(fb *bbolt.Bucket, floor *game.Floor) error {
	meta := *floor
	meta.Layers = nil // layers live in their own bucket

	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encoding floor %q: %w", floor.Name, err)
	}
	return fb.Put(keyMeta, data)
}

func readFloor(fb *bbolt.Bucket) (*game.Floor, error) {
	floor := &game.Floor{}
	if err := json.Unmarshal(fb.Get(keyMeta), floor); err != nil {
		return nil, fmt.Errorf("decoding floor meta: %w", err)
	}

	layers := fb.Bucket(bucketLayers)
	if layers == nil {
		return floor, nil
	}

	c := layers.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var layer game.Layer
		if err := json.Unmarshal(v, &layer); err != nil {
			return nil, fmt.Errorf("decoding layer: %w", err)
		}
		floor.Layers = append(floor.Layers, layer)
	}

	return floor, nil
}

func itob(v uint64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, v)
	return buf.Bytes()
}
