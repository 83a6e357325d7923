package shell

import (
	"context"
	"fmt"

	"github.com/kjk/persons/backup"
	"github.com/kjk/persons/log"
	"github.com/kjk/persons/person"
	"github.com/kjk/persons/store"
)

// App ties the in-memory collection to its backing file
type App struct {
	People *person.Collection
	Store  *store.Store
	// optional
	Backup *backup.Backuper

	// set if the backing file exists but couldn't be loaded.
	// Save refuses to overwrite it
	loadErr error
}

// Open makes sure the backing file exists and loads it.
// If the file can't be created, it returns a nil App: there's nothing
// to work with. If it can't be read, it returns an App with an empty
// collection together with the error. Such App keeps changes in memory
// only: Save fails rather than replace records it never read.
func Open(st *store.Store) (*App, error) {
	if err := st.EnsureExists(); err != nil {
		return nil, err
	}
	app := &App{
		People: &person.Collection{},
		Store:  st,
	}
	people, err := st.Load()
	if err != nil {
		app.loadErr = err
		return app, err
	}
	c, err := person.NewCollection(people...)
	if err != nil {
		// Load drops duplicate ids so this shouldn't happen
		app.loadErr = err
		return app, err
	}
	app.People = c
	log.Verbosef("loaded %d people from '%s', skipped %d lines\n", len(people), st.Path, len(st.Skipped))
	return app, nil
}

// Save writes the whole collection to the backing file and, if configured,
// uploads a backup. A failed backup is logged but doesn't fail Save.
func (a *App) Save(ctx context.Context) error {
	if a.loadErr != nil {
		return fmt.Errorf("%w: not overwriting '%s', it failed to load: %w", store.ErrStorageUnavailable, a.Store.Path, a.loadErr)
	}
	if err := a.Store.Save(a.People.Records()); err != nil {
		return err
	}
	if a.Backup == nil {
		return nil
	}
	_, err := a.Backup.BackupFile(ctx, a.Store.Path)
	log.IfErrf(err)
	return nil
}
