package keystore

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, provider string) *Store {
	t.Helper()
	master, err := NewMasterKey()
	require.NoError(t, err)
	return New(provider, master)
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sk-ant-xxxxWXYZ", "********WXYZ"},
		{"sk-abcdefgh1234", "********1234"},
		{"abcd", "********abcd"},
		{"ab", "********ab"},
	}
	for _, tt := range tests {
		got := Mask(tt.in)
		assert.Equal(t, tt.want, got)
		assert.GreaterOrEqual(t, len(got), 8)
	}
}

func TestMaskDeterministic(t *testing.T) {
	assert.Equal(t, Mask("sk-ant-sameWXYZ"), Mask("sk-ant-sameWXYZ"))
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	s := newTestStore(t, "anthropic")

	require.NoError(t, s.Store("sess-1", "sk-ant-api03-secretWXYZ"))

	got, err := s.Retrieve("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-api03-secretWXYZ", got)

	masked, err := s.Masked("sess-1")
	require.NoError(t, err)
	assert.Equal(t, Mask("sk-ant-api03-secretWXYZ"), masked)
}

func TestStoreTrimsAndRejectsEmpty(t *testing.T) {
	s := newTestStore(t, "openai")

	assert.ErrorIs(t, s.Store("sess-1", ""), ErrEmptyKey)
	assert.ErrorIs(t, s.Store("sess-1", "   \t"), ErrEmptyKey)

	require.NoError(t, s.Store("sess-1", "  sk-trimmed1234  "))
	got, err := s.Retrieve("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-trimmed1234", got)
}

func TestStoreOverwrites(t *testing.T) {
	s := newTestStore(t, "anthropic")

	require.NoError(t, s.Store("sess-1", "sk-ant-firstAAAA"))
	require.NoError(t, s.Store("sess-1", "sk-ant-secondBBBB"))

	got, err := s.Retrieve("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secondBBBB", got)

	masked, err := s.Masked("sess-1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(masked, "BBBB"))
}

func TestRetrieveAbsent(t *testing.T) {
	s := newTestStore(t, "gemini")

	_, err := s.Retrieve("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Masked("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.False(t, s.Exists("nope"))
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, "anthropic")

	require.NoError(t, s.Store("sess-1", "sk-ant-deletemeCCCC"))
	require.True(t, s.Exists("sess-1"))

	s.Delete("sess-1")
	assert.False(t, s.Exists("sess-1"))
	_, err := s.Retrieve("sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent.
	s.Delete("sess-1")
}

func TestAADBindsSessionAndProvider(t *testing.T) {
	master, err := NewMasterKey()
	require.NoError(t, err)
	anthropic := New("anthropic", master)
	openai := New("openai", master)

	require.NoError(t, anthropic.Store("sess-1", "sk-ant-boundDDDD"))

	// Graft the ciphertext into the other provider's store under the same
	// session; decryption must fail because the AAD differs.
	anthropic.mu.Lock()
	e := anthropic.entries["sess-1"]
	anthropic.mu.Unlock()

	openai.mu.Lock()
	openai.entries["sess-1"] = entry{ciphertext: append([]byte(nil), e.ciphertext...), masked: e.masked}
	openai.mu.Unlock()

	_, err = openai.Retrieve("sess-1")
	assert.Error(t, err, "ciphertext must not decrypt under a different provider tag")

	// Same store, different session: also rejected.
	anthropic.mu.Lock()
	anthropic.entries["sess-2"] = entry{ciphertext: append([]byte(nil), e.ciphertext...), masked: e.masked}
	anthropic.mu.Unlock()

	_, err = anthropic.Retrieve("sess-2")
	assert.Error(t, err, "ciphertext must not decrypt under a different session")
}

func TestMasterKeyFromBase64Deterministic(t *testing.T) {
	const secret = "c29tZS1jb25maWd1cmVkLXNlY3JldA==" // base64("some-configured-secret")

	mk1, err := MasterKeyFromBase64(secret)
	require.NoError(t, err)
	mk2, err := MasterKeyFromBase64(secret)
	require.NoError(t, err)

	// Same derived key: ciphertext from one opens under the other.
	s1 := New("anthropic", mk1)
	require.NoError(t, s1.Store("sess-1", "sk-ant-derivedEEEE"))

	s1.mu.Lock()
	e := s1.entries["sess-1"]
	s1.mu.Unlock()

	s2 := New("anthropic", mk2)
	s2.mu.Lock()
	s2.entries["sess-1"] = entry{ciphertext: append([]byte(nil), e.ciphertext...), masked: e.masked}
	s2.mu.Unlock()

	got, err := s2.Retrieve("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-derivedEEEE", got)
}

func TestMasterKeyFromBase64Invalid(t *testing.T) {
	_, err := MasterKeyFromBase64("not base64!!!")
	assert.Error(t, err)

	_, err = MasterKeyFromBase64("")
	assert.Error(t, err)
}

func TestPurge(t *testing.T) {
	s := newTestStore(t, "anthropic")
	require.NoError(t, s.Store("a", "sk-ant-aaaa1111"))
	require.NoError(t, s.Store("b", "sk-ant-bbbb2222"))
	require.Equal(t, 2, s.Len())

	s.Purge()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Exists("a"))
}

func TestConcurrentRetrieveAndDelete(t *testing.T) {
	s := newTestStore(t, "anthropic")
	require.NoError(t, s.Store("sess-1", "sk-ant-racecondFFFF"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Either the prior plaintext or not-found; never corrupt bytes.
			got, err := s.Retrieve("sess-1")
			if err == nil {
				assert.Equal(t, "sk-ant-racecondFFFF", got)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Delete("sess-1")
	}()
	wg.Wait()
}
