package ping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/modules"
	"github.com/energizer-project/craftflow/internal/modules/moduletest"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
)

func setup(t *testing.T, edit func(*config.ServerConfig)) *moduletest.Host {
	cfg := config.DefaultConfig()
	server := cfg.GetServer()
	server.MOTD = "A craftflow server"
	server.MaxPlayers = 42
	if edit != nil {
		edit(&server)
	}
	cfg.SetServer(server)

	host := moduletest.NewHost(t, cfg)
	require.NoError(t, modules.NewRegistry().Add(host, New()))
	return host
}

func TestStatusReply(t *testing.T) {
	favicon := []byte("\x89PNG fake")
	path := filepath.Join(t.TempDir(), "icon.png")
	require.NoError(t, os.WriteFile(path, favicon, 0644))

	host := setup(t, func(s *config.ServerConfig) { s.FaviconPath = path })
	_, client := host.Connect()
	client.Handshake(protocol.V1_20_3, protocol.IntentStatus)
	client.Send(protocol.StateStatus, &protocol.StatusRequest{})

	resp, ok := client.Recv(protocol.StateStatus).(*protocol.StatusResponse)
	require.True(t, ok)
	info := &s2c.StatusInfo{}
	require.NoError(t, info.UnmarshalJSON([]byte(resp.JSON)))
	assert.Equal(t, int32(protocol.V1_20_3), info.Version.Protocol)
	assert.Equal(t, VersionName(), info.Version.Name)
	assert.Equal(t, int32(42), info.Players.Max)
	assert.Equal(t, int32(0), info.Players.Online)
	assert.Equal(t, "A craftflow server", info.Description.Plain())
	assert.Equal(t, favicon, info.Favicon)

	client.Send(protocol.StateStatus, &protocol.StatusPing{Payload: 99})
	pong, ok := client.Recv(protocol.StateStatus).(*protocol.StatusPong)
	require.True(t, ok)
	assert.Equal(t, int64(99), pong.Payload)
}

func TestStatusForUnsupportedVersionReportsNewest(t *testing.T) {
	host := setup(t, nil)
	_, client := host.Connect()
	client.Handshake(protocol.Version(4), protocol.IntentStatus)
	client.Send(protocol.StateStatus, &protocol.StatusRequest{})

	resp, ok := client.Recv(protocol.StateStatus).(*protocol.StatusResponse)
	require.True(t, ok)
	info := &s2c.StatusInfo{}
	require.NoError(t, info.UnmarshalJSON([]byte(resp.JSON)))
	assert.Equal(t, int32(protocol.MaxVersion()), info.Version.Protocol)
}

func TestLegacyPing(t *testing.T) {
	host := setup(t, nil)
	_, client := host.Connect()
	_, err := client.Conn().Write([]byte{0xFE, 0x01})
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := client.Conn().Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 3)
	assert.Equal(t, byte(0xFF), buf[0])

	want := transport.EncodeLegacyResponse(transport.LegacyPre1_6, transport.LegacyResponse{
		ProtocolVersion: LegacyProtocol,
		Version:         VersionName(),
		Description:     "A craftflow server",
		MaxPlayers:      42,
	})
	assert.Equal(t, want, buf[:n])
}

func TestRegisterFailsWithoutFavicon(t *testing.T) {
	cfg := config.DefaultConfig()
	server := cfg.GetServer()
	server.FaviconPath = filepath.Join(t.TempDir(), "missing.png")
	cfg.SetServer(server)

	err := modules.NewRegistry().Add(moduletest.NewHost(t, cfg), New())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "favicon"))
}

func TestVersionName(t *testing.T) {
	assert.Equal(t, "craftflow "+protocol.MinVersion().String()+"-"+protocol.MaxVersion().String(), VersionName())
}
