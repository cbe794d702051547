package control

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lahuca/lane/common/cache"
	"github.com/lahuca/lane/framework/datastore"
)

const localeKey = "savedLocale"

// LocaleService persists each player's preferred locale in the data store
// and fronts reads with a local TTL cache, since the locale is consulted on
// nearly every player-facing message.
type LocaleService struct {
	store *datastore.Store
	cache *cache.GeneralCache
}

func NewLocaleService(store *datastore.Store, ttl time.Duration) (*LocaleService, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c, err := cache.NewGeneralCache(64<<20, ttl)
	if err != nil {
		return nil, err
	}
	return &LocaleService{store: store, cache: c}, nil
}

func localeID(player uuid.UUID) datastore.ObjectID {
	return datastore.RelationalObjectID("players", player.String(), localeKey)
}

func (s *LocaleService) Get(ctx context.Context, player uuid.UUID) (string, error) {
	if locale, ok := s.cache.GetString(player.String()); ok {
		return locale, nil
	}
	view, ok, err := s.store.Read(ctx, datastore.Controller, localeID(player))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	s.cache.Set(player.String(), view.Value)
	return view.Value, nil
}

func (s *LocaleService) Set(ctx context.Context, player uuid.UUID, locale string) error {
	obj := datastore.NewDataObject(localeID(player), datastore.Controller, locale)
	if _, err := s.store.Write(ctx, datastore.Controller, obj); err != nil {
		return err
	}
	s.cache.Set(player.String(), locale)
	return nil
}

func (s *LocaleService) Close() {
	s.cache.Close()
}
