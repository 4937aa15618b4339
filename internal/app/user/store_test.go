package user

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"linechat/internal/pkg/errs"
)

// memoryBackend records saves and can be told to fail.
type memoryBackend struct {
	mu      sync.Mutex
	loaded  []Credential
	loadErr error
	saveErr error
	saved   [][]Credential
}

func (m *memoryBackend) Load(context.Context) ([]Credential, error) {
	return m.loaded, m.loadErr
}

func (m *memoryBackend) Save(_ context.Context, all []Credential, _ Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, all)
	return nil
}

func TestStoreGetIsCaseInsensitiveAndTrimmed(t *testing.T) {
	s := NewStore(&memoryBackend{loaded: []Credential{{Username: "Alice", Password: "pw"}}})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{"Alice", "alice", "  ALICE\t"} {
		c, ok := s.Get(name)
		if !ok {
			t.Errorf("Get(%q) found nothing", name)
			continue
		}
		if c.Username != "Alice" {
			t.Errorf("Get(%q) returned %q", name, c.Username)
		}
	}

	if _, ok := s.Get("alic"); ok {
		t.Error("Get matched a prefix")
	}
}

func TestStoreAddPersistsBeforeReturning(t *testing.T) {
	backend := &memoryBackend{}
	s := NewStore(backend)

	added, err := s.Add(context.Background(), " bob ", "secret")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	want := []Credential{{Username: "bob", Password: "secret"}}
	if diff := cmp.Diff(want[0], added); diff != "" {
		t.Errorf("unexpected credential (-want +got):\n%s", diff)
	}
	if len(backend.saved) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(backend.saved))
	}
	if diff := cmp.Diff(want, backend.saved[0]); diff != "" {
		t.Errorf("unexpected persisted list (-want +got):\n%s", diff)
	}
}

func TestStoreAddRejectsDuplicates(t *testing.T) {
	s := NewStore(&memoryBackend{loaded: []Credential{{Username: "carol", Password: "x"}}})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err := s.Add(context.Background(), "CAROL", "y")
	if !errs.HasCode(err, errs.ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store grew to %d entries", s.Len())
	}
}

func TestStoreAddRollsBackOnSaveFailure(t *testing.T) {
	s := NewStore(&memoryBackend{saveErr: errors.New("disk full")})

	_, err := s.Add(context.Background(), "dave", "pw")
	if !errs.HasCode(err, errs.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, ok := s.Get("dave"); ok {
		t.Error("failed registration is still visible")
	}
}

func TestStoreLoadClassifiesErrors(t *testing.T) {
	corrupt := NewStore(&memoryBackend{loadErr: Corrupt(errors.New("bad json"))})
	if err := corrupt.Load(context.Background()); !errs.HasCode(err, errs.ErrStoreCorrupt) {
		t.Errorf("expected ErrStoreCorrupt, got %v", err)
	}

	unavailable := NewStore(&memoryBackend{loadErr: errors.New("permission denied")})
	if err := unavailable.Load(context.Background()); !errs.HasCode(err, errs.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestStoreConcurrentRegistrations(t *testing.T) {
	backend := &memoryBackend{}
	s := NewStore(backend)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Add(context.Background(), fmt.Sprintf("user%d", i), "pw"); err != nil {
				t.Errorf("Add user%d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if s.Len() != 20 {
		t.Fatalf("expected 20 users, got %d", s.Len())
	}
	last := backend.saved[len(backend.saved)-1]
	if len(last) != 20 {
		t.Errorf("last persisted snapshot has %d users", len(last))
	}
}

func TestStoreConcurrentRegistrationsPersistToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s := NewStore(NewFileBackend(path))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Add(context.Background(), fmt.Sprintf("user%d", i), "pw"); err != nil {
				t.Errorf("Add user%d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	reloaded := NewStore(NewFileBackend(path))
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Len() != 20 {
		t.Fatalf("expected 20 users in the file, got %d", reloaded.Len())
	}
	for i := range 20 {
		name := fmt.Sprintf("user%d", i)
		c, ok := reloaded.Get(name)
		if !ok {
			t.Errorf("%s missing from the file", name)
			continue
		}
		if !reloaded.Verify(c, "pw") {
			t.Errorf("%s does not verify after reload", name)
		}
	}
}

func TestStoreHashedPasswords(t *testing.T) {
	s := NewStore(&memoryBackend{}, WithPasswordHashing(true))

	c, err := s.Add(context.Background(), "erin", "hunter2")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.Password == "hunter2" {
		t.Fatal("password stored in plaintext")
	}
	if !s.Verify(c, "hunter2") {
		t.Error("Verify rejected the right password")
	}
	if s.Verify(c, "hunter3") {
		t.Error("Verify accepted a wrong password")
	}
}

func TestStoreRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	ctx := context.Background()

	first := NewStore(NewFileBackend(path))
	if err := first.Load(ctx); err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}
	original, err := first.Add(ctx, "Frank", "P@ss word")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	second := NewStore(NewFileBackend(path))
	if err := second.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := second.Get("frank")
	if !ok {
		t.Fatal("registered user lost after reload")
	}
	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !second.Verify(got, "P@ss word") {
		t.Error("password does not verify after reload")
	}
}

func TestStoreHashingKeepsPlaintextUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`[{"Username":"alice","Password":"secret"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(NewFileBackend(path), WithPasswordHashing(true))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	alice, ok := s.Get("alice")
	if !ok {
		t.Fatal("alice not loaded")
	}
	if !s.Verify(alice, "secret") {
		t.Error("plaintext user rejected by a hashing store")
	}
	if s.Verify(alice, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestStoreVerifiesHashesWithHashingOff(t *testing.T) {
	backend := &memoryBackend{}
	hashing := NewStore(backend, WithPasswordHashing(true))
	bob, err := hashing.Add(context.Background(), "bob", "hunter2")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	plain := NewStore(backend)
	if !plain.Verify(bob, "hunter2") {
		t.Error("hashed user rejected once hashing is off")
	}
	if plain.Verify(bob, bob.Password) {
		t.Error("the stored hash itself was accepted as the password")
	}
}
