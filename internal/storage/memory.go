package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

// MemoryStore хранит метаданные, пользователей и сессии в памяти процесса.
// Используется в режиме storage.backend=memory и в тестах.
type MemoryStore struct {
	mu       sync.Mutex
	records  []models.FileRecord
	users    map[string]models.User
	sessions map[string]models.Session
	now      func() time.Time
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) InsertRecord(_ context.Context, rec models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.Filename != nil {
		name := *rec.Filename
		rec.Filename = &name
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) FolderHasRecords(_ context.Context, folder string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.Folder == folder {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DeleteRecord(_ context.Context, folder, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.records {
		if r.Folder == folder && r.Filename != nil && *r.Filename == filename {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DeleteFolderRecords(_ context.Context, folder string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.Folder == folder {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *MemoryStore) ListFolders(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	folders := make([]string, 0)
	for _, r := range m.records {
		if _, ok := seen[r.Folder]; ok {
			continue
		}
		seen[r.Folder] = struct{}{}
		folders = append(folders, r.Folder)
	}
	sort.Strings(folders)
	return folders, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, folder string) ([]models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.FileRecord, 0)
	for _, r := range m.records {
		if r.Folder == folder {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTime.Before(out[j].UploadTime)
	})
	return out, nil
}

// Records возвращает копию всех записей
func (m *MemoryStore) Records() []models.FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.FileRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemoryStore) CreateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Username]; ok {
		return models.ErrUserExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return user, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return models.Session{}, models.ErrSessionNotFound
	}
	if !session.ExpiresAt.IsZero() && m.now().After(session.ExpiresAt) {
		delete(m.sessions, id)
		return models.Session{}, models.ErrSessionNotFound
	}
	return session, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}
