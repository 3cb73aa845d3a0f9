// Package shared wires the pieces every app needs: validation, the snapshot cache and the timetable service.
package shared

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/tobias-barakaa/newschool-sub008/apps"
	"github.com/tobias-barakaa/newschool-sub008/core"
	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
	appfs "github.com/tobias-barakaa/newschool-sub008/fs"
	"github.com/tobias-barakaa/newschool-sub008/storage/cache/inmemcache"
	"github.com/tobias-barakaa/newschool-sub008/storage/cache/pgcache"
	"github.com/tobias-barakaa/newschool-sub008/storage/cache/sqlitecache"
	"github.com/tobias-barakaa/newschool-sub008/storage/database"
)

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	timetable.InitValidators(validate, translator)
	return validate, translator
}

// OpenCache opens the snapshot cache selected by cache.engine. closeFn releases it.
func OpenCache(ctx context.Context, conf *core.Config) (cache timetable.Cache, closeFn func() error, err error) {
	switch conf.Cache.Engine {
	case "memory":
		return inmemcache.New(), func() error { return nil }, nil

	case "sqlite", "":
		path := conf.Cache.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(conf.WorkDir, path)
		}
		c, err := sqlitecache.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil

	case "postgres":
		if err = database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pgcache.New(db), db.Close, nil
	}
	return nil, nil, apps.NewArgumentError("unknown cache engine: " + conf.Cache.Engine)
}

// LoadSeed reads the seed fixture: from disk when conf.FixturePath names an existing file
// (relative to the work dir), from the embedded files otherwise.
func LoadSeed(conf *core.Config) (timetable.State, error) {
	path := conf.FixturePath
	if path == "" {
		path = appfs.FixturePath
	}

	var fsys fs.FS = appfs.FS
	if filepath.IsAbs(path) {
		fsys, path = os.DirFS(filepath.Dir(path)), filepath.Base(path)
	} else if fi, err := os.Stat(filepath.Join(conf.WorkDir, path)); err == nil && !fi.IsDir() {
		fsys = os.DirFS(conf.WorkDir)
		path = filepath.ToSlash(path)
	}
	return timetable.LoadFixture(fsys, path)
}

// NewTimetableService builds and initialises the service. A failed first write is logged, not returned:
// the service still works from memory.
func NewTimetableService(
	ctx context.Context,
	conf *core.Config,
	cache timetable.Cache,
	logger core.Logger,
	mailSvc core.EmailService,
) (*timetable.Service, error) {
	seed, err := LoadSeed(conf)
	if err != nil {
		return nil, errors.Wrap(err, "loading seed fixture")
	}

	svc := timetable.NewService(timetable.Deps{
		Cache:   cache,
		Seed:    seed,
		Logger:  logger,
		MailSvc: mailSvc,
		AlertTo: conf.ConflictAlertEmails(),
		Slot:    conf.Cache.Slot,
	})
	if err = svc.Init(ctx); err != nil {
		if !timetable.IsPersistError(err) {
			return nil, err
		}
		logger.Warn("timetable: initial snapshot not saved", err)
	}
	return svc, nil
}
