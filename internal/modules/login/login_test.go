package login

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/modules"
	"github.com/energizer-project/craftflow/internal/modules/moduletest"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/util"
)

func setup(t *testing.T, opts Options, edit func(*config.ServerConfig)) (*moduletest.Host, *Module) {
	cfg := config.DefaultConfig()
	server := cfg.GetServer()
	if edit != nil {
		edit(&server)
	}
	cfg.SetServer(server)

	host := moduletest.NewHost(t, cfg)
	m := New(opts)
	require.NoError(t, modules.NewRegistry().Add(host, m))
	return host, m
}

func TestOfflineUUID(t *testing.T) {
	id := OfflineUUID("Steve")
	assert.Equal(t, uuid.Version(3), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())
	assert.Equal(t, id, OfflineUUID("Steve"))
	assert.NotEqual(t, id, OfflineUUID("steve"))
}

func TestLoginWithCompressionAndKeepAlive(t *testing.T) {
	host, _ := setup(t, Options{KeepAliveInterval: 20 * time.Millisecond}, func(s *config.ServerConfig) {
		s.CompressionThreshold = 64
	})
	conn, client := host.Connect()
	client.Handshake(protocol.V1_8, protocol.IntentLogin)
	client.Send(protocol.StateLogin, &protocol.LoginStartV5{Username: "Steve"})

	sc, ok := client.Recv(protocol.StateLogin).(*protocol.SetCompression)
	require.True(t, ok)
	assert.Equal(t, int32(64), sc.Threshold)
	client.EnableCompression(64)

	success, ok := client.Recv(protocol.StateLogin).(*protocol.LoginSuccessV5)
	require.True(t, ok)
	assert.Equal(t, "Steve", success.Username)
	assert.Equal(t, OfflineUUID("Steve"), success.UUID)
	require.Eventually(t, func() bool { return conn.State() == protocol.StatePlay }, moduletest.Timeout, 5*time.Millisecond)

	ka, ok := client.Recv(protocol.StatePlay).(*protocol.PlayKeepAliveS2CV47)
	require.True(t, ok)
	client.Send(protocol.StatePlay, &protocol.PlayKeepAliveV47{ID: ka.ID})

	next, ok := client.Recv(protocol.StatePlay).(*protocol.PlayKeepAliveS2CV47)
	require.True(t, ok)
	assert.Greater(t, next.ID, ka.ID)
}

func TestLoginWithEncryptionAndConfiguration(t *testing.T) {
	host, _ := setup(t, Options{}, func(s *config.ServerConfig) {
		s.CompressionThreshold = 256
		s.OnlineEncryption = true
	})
	conn, client := host.Connect()
	client.Handshake(protocol.V1_21, protocol.IntentLogin)
	client.Send(protocol.StateLogin, &protocol.LoginStartV764{Username: "Alex", UUID: uuid.New()})

	req, ok := client.Recv(protocol.StateLogin).(*protocol.EncryptionRequestV766)
	require.True(t, ok)
	assert.Len(t, req.VerifyToken, verifyTokenSize)
	assert.False(t, req.ShouldAuthenticate)

	secret, err := util.RandomBytes(16)
	require.NoError(t, err)
	encSecret, err := util.EncryptForKey(req.PublicKey, secret)
	require.NoError(t, err)
	encToken, err := util.EncryptForKey(req.PublicKey, req.VerifyToken)
	require.NoError(t, err)
	client.Send(protocol.StateLogin, &protocol.EncryptionResponseV47{SharedSecret: encSecret, VerifyToken: encToken})
	client.EnableEncryption(secret)

	_, ok = client.Recv(protocol.StateLogin).(*protocol.SetCompression)
	require.True(t, ok)
	client.EnableCompression(256)

	success, ok := client.Recv(protocol.StateLogin).(*protocol.LoginSuccessV766)
	require.True(t, ok)
	assert.Equal(t, OfflineUUID("Alex"), success.UUID)

	client.Send(protocol.StateLogin, &protocol.LoginAcknowledged{})
	packs, ok := client.Recv(protocol.StateConfiguration).(*protocol.SelectKnownPacksS2C)
	require.True(t, ok)
	require.Len(t, packs.Packs, 1)
	assert.Equal(t, "core", packs.Packs[0].ID)

	client.Send(protocol.StateConfiguration, &protocol.SelectKnownPacksC2S{Packs: packs.Packs})
	var ids []string
	for range s2c.RequiredRegistries {
		reg, ok := client.Recv(protocol.StateConfiguration).(*protocol.RegistryDataV766)
		require.True(t, ok)
		ids = append(ids, reg.RegistryID)
		for _, e := range reg.Entries {
			assert.Nil(t, e.Data, "core pack data is not inlined")
		}
	}
	assert.ElementsMatch(t, s2c.RequiredRegistries, ids)

	_, ok = client.Recv(protocol.StateConfiguration).(*protocol.ConfFinishS2C)
	require.True(t, ok)
	client.Send(protocol.StateConfiguration, &protocol.ConfFinishC2S{})

	require.Eventually(t, func() bool {
		return conn.ReadState() == protocol.StatePlay && conn.State() == protocol.StatePlay
	}, moduletest.Timeout, 5*time.Millisecond)
}

func TestLoginRejectsBadVerifyToken(t *testing.T) {
	host, _ := setup(t, Options{}, func(s *config.ServerConfig) {
		s.CompressionThreshold = -1
		s.OnlineEncryption = true
	})
	_, client := host.Connect()
	client.Handshake(protocol.V1_20_3, protocol.IntentLogin)
	client.Send(protocol.StateLogin, &protocol.LoginStartV764{Username: "Alex"})

	req, ok := client.Recv(protocol.StateLogin).(*protocol.EncryptionRequestV47)
	require.True(t, ok)
	encSecret, err := util.EncryptForKey(req.PublicKey, make([]byte, 16))
	require.NoError(t, err)
	encToken, err := util.EncryptForKey(req.PublicKey, []byte{1, 2, 3})
	require.NoError(t, err)
	client.Send(protocol.StateLogin, &protocol.EncryptionResponseV47{SharedSecret: encSecret, VerifyToken: encToken})

	dc, ok := client.Recv(protocol.StateLogin).(*protocol.LoginDisconnect)
	require.True(t, ok)
	assert.Contains(t, dc.Reason, ReasonEncryptionFailed)
}

func TestLoginRejectsInvalidUsername(t *testing.T) {
	host, m := setup(t, Options{}, nil)
	conn, client := host.Connect()
	client.Handshake(protocol.V1_12_2, protocol.IntentLogin)
	client.Send(protocol.StateLogin, &protocol.LoginStartV5{Username: "bad name!"})

	dc, ok := client.Recv(protocol.StateLogin).(*protocol.LoginDisconnect)
	require.True(t, ok)
	assert.Contains(t, dc.Reason, ReasonInvalidUsername)

	select {
	case <-conn.Done():
	case <-time.After(moduletest.Timeout):
		t.Fatal("connection not closed")
	}
	assert.Zero(t, m.Sessions())
}

func TestUnsupportedVersionNamesRange(t *testing.T) {
	host, _ := setup(t, Options{}, nil)
	_, client := host.Connect()
	client.Handshake(protocol.Version(4), protocol.IntentLogin)

	dc, ok := client.Recv(protocol.StateLogin).(*protocol.LoginDisconnect)
	require.True(t, ok)
	assert.True(t, strings.Contains(dc.Reason, protocol.MaxVersion().String()), dc.Reason)
}

func TestKeepAliveTimeoutDisconnects(t *testing.T) {
	host, _ := setup(t, Options{KeepAliveInterval: 10 * time.Millisecond, KeepAliveTimeout: 30 * time.Millisecond}, func(s *config.ServerConfig) {
		s.CompressionThreshold = -1
	})
	conn, client := host.Connect()
	client.Handshake(protocol.V1_8, protocol.IntentLogin)
	client.Send(protocol.StateLogin, &protocol.LoginStartV5{Username: "Idle"})
	_, ok := client.Recv(protocol.StateLogin).(*protocol.LoginSuccessV5)
	require.True(t, ok)

	// Keep alives go unanswered until the server gives up.
	var dc *protocol.PlayDisconnectV5
	for dc == nil {
		switch p := client.Recv(protocol.StatePlay).(type) {
		case *protocol.PlayKeepAliveS2CV47:
		case *protocol.PlayDisconnectV5:
			dc = p
		default:
			t.Fatalf("unexpected %T", p)
		}
	}
	assert.Contains(t, dc.Reason, ReasonKeepAliveTimedOut)

	select {
	case <-conn.Done():
	case <-time.After(moduletest.Timeout):
		t.Fatal("connection not closed")
	}
}

func TestDefaultRegistriesAreComplete(t *testing.T) {
	for _, inline := range []bool{true, false} {
		reg := defaultRegistries(inline)
		assert.Empty(t, reg.Missing())
		res, err := reg.Convert(protocol.V1_20_2, protocol.StateConfiguration)
		require.NoError(t, err)
		require.Len(t, res.Packets, 1)
		_, ok := res.Packets[0].(*protocol.RegistryDataV764)
		assert.True(t, ok)
	}
}
