package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "wstcal/internal/log"
	"wstcal/internal/model"
)

// Store loads and saves the whole saved-schedule list.
type Store interface {
	Load(ctx context.Context) ([]model.Snapshot, error)
	Save(ctx context.Context, list []model.Snapshot) error
}

// FileStore keeps the list as a JSON file.
type FileStore struct {
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Load returns an empty list when the file does not exist yet.
func (f *FileStore) Load(ctx context.Context) ([]model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data, f.now())
}

// Save writes atomically: temp file in the same directory, then rename.
func (f *FileStore) Save(ctx context.Context, list []model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.path == "" {
		return errors.New("store: path is empty")
	}

	data, err := Encode(list, f.now())
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".wstcal-schedules-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

// redisKV is the subset of the go-redis client RedisStore needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the list as one JSON value under a single key.
type RedisStore struct {
	client redisKV
	key    string
	now    func() time.Time
}

// NewRedisStore uses key, or Key when empty.
func NewRedisStore(client redisKV, key string) *RedisStore {
	if key == "" {
		key = Key
	}
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (r *RedisStore) Load(ctx context.Context) ([]model.Snapshot, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return Decode(raw, r.now())
}

func (r *RedisStore) Save(ctx context.Context, list []model.Snapshot) error {
	payload, err := Encode(list, r.now())
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// NewRedisClient connects and pings, closing the client on failure.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Library serializes read-modify-write cycles on a Store.
type Library struct {
	mu    sync.Mutex
	store Store
	max   int
	now   func() time.Time
}

// NewLibrary caps the list at max (MaxSchedules when <= 0).
func NewLibrary(s Store, max int) *Library {
	if max <= 0 {
		max = MaxSchedules
	}
	return &Library{store: s, max: max, now: time.Now}
}

func (l *Library) Max() int { return l.max }

func (l *Library) List(ctx context.Context) ([]model.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Load(ctx)
}

// Add saves a new snapshot of courses at the front of the list.
func (l *Library) Add(ctx context.Context, name string, courses []model.CourseSession) (model.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.store.Load(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap := NewSnapshot(name, courses, l.now())
	list, err = Prepend(list, snap, l.max)
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := l.store.Save(ctx, list); err != nil {
		return model.Snapshot{}, err
	}
	appLog.Info("schedule saved", "id", snap.ID, "name", snap.Name, "courses", len(snap.Courses))
	return snap, nil
}

func (l *Library) Get(ctx context.Context, id string) (model.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.store.Load(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	return Find(list, id)
}

func (l *Library) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	list, err = Remove(list, id)
	if err != nil {
		return err
	}
	if err := l.store.Save(ctx, list); err != nil {
		return err
	}
	appLog.Info("schedule deleted", "id", id)
	return nil
}
