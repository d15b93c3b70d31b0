package fleet

import (
	"fmt"
	"time"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/snapshot"
)

// DumpGame dumps a single game per §4.6: acquire the wrapper mutex,
// determine the next slot, write meta, write the slot payload, evict
// slots beyond retention, and return the slot number. If state is
// disabled, returns slot 0 with no effect.
func (c *Container) DumpGame(id uint64) (int, error) {
	if !c.stateEnabled {
		return 0, nil
	}
	w, err := c.Get(id)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	slot, err := c.dumpGameLocked(id, w)
	c.observeDump(err)
	return slot, err
}

func (c *Container) dumpGameLocked(id uint64, w *Wrapper) (int, error) {
	slot, err := c.store.NextSlot(id)
	if err != nil {
		return 0, apierr.Internal(err)
	}

	if err := c.store.WriteMeta(snapshot.Meta{
		ID:         id,
		Name:       w.name,
		Definition: w.definition,
		Created:    w.createdAt,
	}); err != nil {
		return 0, apierr.Internal(err)
	}

	payload, err := w.game.Serialize(c.format)
	if err != nil {
		return 0, apierr.Internal(fmt.Errorf("serialize game %d: %w", id, err))
	}
	if err := c.store.WriteSlot(id, slot, time.Now().Unix(), c.format, payload); err != nil {
		return 0, apierr.Internal(err)
	}
	if err := c.store.EnforceRetention(id, c.maxDumpsPerGame); err != nil {
		return 0, apierr.Internal(err)
	}

	return slot, nil
}

func (c *Container) observeDump(err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.DumpsTotal.WithLabelValues(outcome).Inc()
}

func (c *Container) observeRestore(err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.RestoresTotal.WithLabelValues(outcome).Inc()
}

// DumpAll dumps every live game. A failed dump on one game is logged and
// does not abort the fleet dump.
func (c *Container) DumpAll() error {
	if !c.stateEnabled {
		return nil
	}
	for _, id := range c.AllIDs() {
		if _, err := c.DumpGame(id); err != nil {
			c.logger.Error("fleet dump: game failed", "game_id", id, "error", err)
		}
	}
	return nil
}

// RestoreGame deserializes the given game id/slot (most-recent if slot is
// nil) and inserts it, replacing any live game with the same id. Returns
// the slot that was restored.
func (c *Container) RestoreGame(id uint64, slot *int) (int, error) {
	if !c.stateEnabled {
		return 0, apierr.Unsupported("state feature is disabled")
	}
	restoredSlot, err := c.restoreGame(id, slot)
	c.observeRestore(err)
	return restoredSlot, err
}

func (c *Container) restoreGame(id uint64, slot *int) (int, error) {
	meta, err := c.store.ReadMeta(id)
	if err != nil {
		return 0, apierr.NotFound("dumped game not found")
	}

	chosenSlot := 0
	if slot != nil {
		chosenSlot = *slot
	} else {
		latest, ok, err := c.store.LatestSlot(id)
		if err != nil {
			return 0, apierr.Internal(err)
		}
		if !ok {
			return 0, apierr.NotFound("game slot not found")
		}
		chosenSlot = latest
	}

	format, payload, ok, err := c.store.ReadSlot(id, chosenSlot)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	if !ok {
		return 0, apierr.NotFound("game slot not found")
	}

	game, err := c.factory.Deserialize(format, payload)
	if err != nil {
		return 0, apierr.Internal(fmt.Errorf("deserialize game %d slot %d: %w", id, chosenSlot, err))
	}

	w := newWrapper(id, meta.Name, meta.Definition, game)
	w.createdAt = meta.Created
	w.setRestoredFromSlot(chosenSlot)

	c.insertWrapper(id, w)
	return chosenSlot, nil
}

// RestoreAll iterates every game id directory under the state path and
// restores each (most-recent slot), reserving every discovered id so
// subsequent Create calls never reuse them. A failed restore of one game
// is logged and does not abort the others.
func (c *Container) RestoreAll() error {
	if !c.stateEnabled {
		return nil
	}
	ids, err := c.store.GameIDs()
	if err != nil {
		return apierr.Internal(err)
	}

	for _, id := range ids {
		if _, err := c.RestoreGame(id, nil); err != nil {
			c.logger.Error("fleet restore: game failed", "game_id", id, "error", err)
		}
		c.idxMu.Lock()
		if id >= c.nextID {
			c.nextID = id + 1
		}
		c.idxMu.Unlock()
	}
	return nil
}

// DumpList returns the on-disk slot numbers for a single game.
func (c *Container) DumpList(id uint64) ([]int, error) {
	slots, err := c.store.ExistingSlots(id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return slots, nil
}

// DumpedGameIDs returns every dumped game id on disk.
func (c *Container) DumpedGameIDs() ([]uint64, error) {
	ids, err := c.store.GameIDs()
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return ids, nil
}

// DestroyDump removes a game's entire on-disk history, or a single slot if
// slot is non-nil.
func (c *Container) DestroyDump(id uint64, slot *int) error {
	var err error
	if slot != nil {
		err = c.store.DeleteSlot(id, *slot)
	} else {
		err = c.store.DeleteGame(id)
	}
	if err != nil {
		return apierr.Internal(err)
	}
	return nil
}
