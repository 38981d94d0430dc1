package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginKeyRoundTrip(t *testing.T) {
	key, err := GenerateRSAKey()
	require.NoError(t, err)
	require.NotEmpty(t, key.PublicDER())

	secret, err := RandomBytes(16)
	require.NoError(t, err)

	ciphertext, err := EncryptForKey(key.PublicDER(), secret)
	require.NoError(t, err)
	assert.Len(t, ciphertext, LoginKeyBits/8)

	plain, err := key.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, secret, plain)

	_, err = key.Decrypt([]byte("not a ciphertext"))
	assert.Error(t, err)
}

func TestCleanOldLogsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, logFilePrefix+string(rune('a'+i))+".log")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	other := filepath.Join(dir, "other.log")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))

	cleanOldLogs(dir, 2, 0)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{logFilePrefix + "c.log", logFilePrefix + "d.log", "other.log"}, names)
}

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "api.crt")
	key := filepath.Join(dir, "api.key")
	require.NoError(t, GenerateSelfSignedCert(cert, key))
	assert.True(t, FileExists(cert))
	assert.True(t, FileExists(key))
}

func TestSystemInfoAndUsage(t *testing.T) {
	info := GetSystemInfo()
	assert.Equal(t, runtime.GOOS, info.Platform)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Positive(t, info.CPUCores)

	u := GetUsage(t.TempDir())
	require.NotNil(t, u.Process)
	assert.Positive(t, u.Process.Goroutines)
	if u.Disk != nil {
		assert.LessOrEqual(t, u.Disk.UsedPercent, 100.0)
	}
}
